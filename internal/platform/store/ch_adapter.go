package store

import (
	"context"
	"errors"

	chx "whispermap/internal/platform/store/ch"
)

// chAdapter wraps ch.CH and implements Clickhouse
type chAdapter struct {
	c *chx.CH
}

func newCHAdapter(c *chx.CH) *chAdapter { return &chAdapter{c: c} }

func (a *chAdapter) Ping(ctx context.Context) error {
	if a == nil || a.c == nil {
		return errors.New("ch: nil adapter")
	}
	return a.c.Ping(ctx)
}

func (a *chAdapter) Insert(ctx context.Context, table string, cols []string, rows [][]any) error {
	return a.c.Insert(ctx, table, cols, rows)
}

func (a *chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := a.c.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (a *chAdapter) Close() error { return a.c.Close() }
