// Package normalize cleans user-supplied whisper text before storage
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Strip control characters except newline and tab
// 3 Unicode NFC normalization
// 4 Remove zero-width and other format characters
// 5 Collapse whitespace to single spaces and trim
// Display casing is preserved; this is presentation text, not match input
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
		)
	},
}

// Text returns the normalized form of s following the pipeline above
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")
	s = stripControls(s)

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return collapseSpaces(ns)
}

// Title normalizes a whisper title and truncates it to maxRunes
func Title(s string, maxRunes int) string {
	return truncate(Text(s), maxRunes)
}

// Description normalizes a whisper description and truncates it to maxRunes
func Description(s string, maxRunes int) string {
	return truncate(Text(s), maxRunes)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return strings.TrimRight(string(r[:maxRunes]), " ")
}

// stripControls removes ASCII and C1 controls except newline, return, tab
func stripControls(s string) string {
	clean := true
	for _, r := range s {
		if isBannedControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isBannedControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBannedControl(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return false
	}
	return r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

// collapseSpaces converts whitespace runs, newlines included, to a single
// ASCII space and trims the edges. Whisper text is single-line on the map
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
