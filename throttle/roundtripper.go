package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// roundTripper is an http.RoundTripper that drops outbound calls once the
// acceptor runs out of tokens.
type roundTripper struct {
	acceptor Acceptor
	recorder TimeRecorder
	next     http.RoundTripper
	logFn    func() *slog.Logger
}

// NewRoundTripper returns an http.RoundTripper that spends one token per
// outbound request and fails fast with ErrThrottled when none is left.
// logFn lazily resolves the logger at request time; it may return nil.
func NewRoundTripper(a Acceptor, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if a == nil {
		return nil, ErrNilAcceptor
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	rt := &roundTripper{
		acceptor: a,
		next:     next,
		logFn:    logFn,
	}
	if r, ok := a.(TimeRecorder); ok {
		rt.recorder = r
	}

	return rt, nil
}

func (t *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := r.Context().Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if !t.acceptor.Accept(1) {
		if logger := t.logFn(); logger != nil {
			logger.Info("throttle tokens exhausted", "method", r.Method, "path", r.URL.Path)
		}
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, ErrThrottled)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	if t.recorder != nil {
		t.recorder.AddTime(time.Since(start))
	}
	return resp, err
}
