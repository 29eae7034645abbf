package authenticate

import (
	"context"
	"sync"
)

type logKey struct{}

// requestLog collects attributes added by inner middleware for the request line.
type requestLog struct {
	mu    sync.Mutex
	attrs []any
}

func (l *requestLog) add(attrs ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.attrs = append(l.attrs, attrs...)
	l.mu.Unlock()
}

func withRequestLog(ctx context.Context, l *requestLog) context.Context {
	return context.WithValue(ctx, logKey{}, l)
}

func requestLogFrom(ctx context.Context) *requestLog {
	l, _ := ctx.Value(logKey{}).(*requestLog)
	return l
}
