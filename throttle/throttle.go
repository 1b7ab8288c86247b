package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	ErrThrottled    = errors.New("throttled")
	ErrNilAcceptor  = errors.New("acceptor must not be nil")
	ErrContextEnded = errors.New("throttle context ended")
)

// Acceptor grants or denies tokens. *tokenfence.IntervalRateLimiter
// satisfies it.
type Acceptor interface {
	Accept(count int64) bool
}

// TimeRecorder receives the duration of every call a Throttle let through.
type TimeRecorder interface {
	AddTime(d time.Duration)
}

// Wrap returns a function that calls fn only when a accepts one token.
// The returned function reports whether fn ran.
func Wrap[T any](a Acceptor, fn func(T)) func(T) bool {
	return func(v T) bool {
		if !a.Accept(1) {
			return false
		}
		fn(v)
		return true
	}
}

// Throttle runs functions at most once per accepted token.
type Throttle struct {
	acceptor Acceptor
	recorder TimeRecorder
	tracer   trace.Tracer
	logFn    func() *slog.Logger
	name     string
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithTracer records a span around every Do call.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Throttle) {
		t.tracer = tracer
	}
}

// WithLogger lazily resolves the logger at call time. A nil-returning logFn
// disables logging.
func WithLogger(logFn func() *slog.Logger) Option {
	return func(t *Throttle) {
		t.logFn = logFn
	}
}

// WithName labels spans and log lines.
func WithName(name string) Option {
	return func(t *Throttle) {
		t.name = name
	}
}

// New returns a Throttle drawing tokens from a. If a also implements
// TimeRecorder, the duration of every completed call is fed back to it.
func New(a Acceptor, opts ...Option) (*Throttle, error) {
	if a == nil {
		return nil, ErrNilAcceptor
	}

	t := &Throttle{
		acceptor: a,
		tracer:   noop.NewTracerProvider().Tracer("no-op tracer"),
		logFn:    func() *slog.Logger { return nil },
		name:     "throttle",
	}
	if r, ok := a.(TimeRecorder); ok {
		t.recorder = r
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Do runs fn if a token is available and returns ErrThrottled otherwise.
// It never waits for a token.
func (t *Throttle) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	ctx, span := t.tracer.Start(ctx, t.name)
	defer span.End()

	if !t.acceptor.Accept(1) {
		span.SetAttributes(attribute.Bool("throttle.accepted", false))
		span.SetStatus(codes.Error, ErrThrottled.Error())
		if logger := t.logFn(); logger != nil {
			logger.Info("throttle tokens exhausted", "name", t.name)
		}
		return ErrThrottled
	}
	span.SetAttributes(attribute.Bool("throttle.accepted", true))

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if t.recorder != nil {
		t.recorder.AddTime(elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if logger := t.logFn(); logger != nil {
		logger.Debug("throttle call complete", "name", t.name, "took", elapsed.String())
	}
	return nil
}
