package throttle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KanavDutta/tokenfence/core"
	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// countingAcceptor grants the first n tokens and records added time.
type countingAcceptor struct {
	left  int64
	calls int64
	added time.Duration
}

func (a *countingAcceptor) Accept(count int64) bool {
	a.calls++
	if a.left < count {
		return false
	}
	a.left -= count
	return true
}

func (a *countingAcceptor) AddTime(d time.Duration) { a.added += d }

func TestWrap(t *testing.T) {
	a := &countingAcceptor{left: 2}

	var fired []string
	notify := Wrap(a, func(msg string) { fired = append(fired, msg) })

	results := []bool{notify("a"), notify("b"), notify("c")}

	if !results[0] || !results[1] || results[2] {
		t.Errorf("results = %v, want [true true false]", results)
	}
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("fired = %v, want [a b]", fired)
	}
}

func TestWrap_IntervalRateLimiter(t *testing.T) {
	limiter, err := tokenfence.New(3, core.Minute)
	if err != nil {
		t.Fatalf("tokenfence.New() failed: %v", err)
	}

	var calls int
	fn := Wrap(limiter, func(struct{}) { calls++ })
	for i := 0; i < 10; i++ {
		fn(struct{}{})
	}

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilAcceptor) {
		t.Errorf("New(nil) error = %v, want ErrNilAcceptor", err)
	}
	if _, err := NewRoundTripper(nil, nil, nil); !errors.Is(err, ErrNilAcceptor) {
		t.Errorf("NewRoundTripper(nil) error = %v, want ErrNilAcceptor", err)
	}
}

func TestThrottle_Do(t *testing.T) {
	errBoom := errors.New("boom")

	testCases := []struct {
		name    string
		tokens  int64
		ctx     func() context.Context
		fn      func(context.Context) error
		expErr  error
		expRan  bool
		expTime bool
	}{
		{
			name:    "Token available",
			tokens:  1,
			ctx:     context.Background,
			fn:      func(context.Context) error { time.Sleep(2 * time.Millisecond); return nil },
			expRan:  true,
			expTime: true,
		},
		{
			name:   "Tokens exhausted",
			tokens: 0,
			ctx:    context.Background,
			fn:     func(context.Context) error { return nil },
			expErr: ErrThrottled,
		},
		{
			name:    "Function error passes through",
			tokens:  1,
			ctx:     context.Background,
			fn:      func(context.Context) error { time.Sleep(time.Millisecond); return errBoom },
			expErr:  errBoom,
			expRan:  true,
			expTime: true,
		},
		{
			name:   "Pre-cancelled context",
			tokens: 1,
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			fn:     func(context.Context) error { return nil },
			expErr: ErrContextEnded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := &countingAcceptor{left: tc.tokens}
			th, err := New(a,
				WithName("test"),
				WithLogger(func() *slog.Logger { return nil }),
			)
			if err != nil {
				t.Fatal(err)
			}

			ran := false
			err = th.Do(tc.ctx(), func(ctx context.Context) error {
				ran = true
				return tc.fn(ctx)
			})

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
			} else if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}

			if ran != tc.expRan {
				t.Errorf("ran = %v, want %v", ran, tc.expRan)
			}
			if got := a.added > 0; got != tc.expTime {
				t.Errorf("time recorded = %v (%v), want %v", got, a.added, tc.expTime)
			}
		})
	}
}

func TestThrottle_FeedsAverageTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	limiter, err := tokenfence.New(5, core.Second, tokenfence.WithNow(clock))
	if err != nil {
		t.Fatalf("tokenfence.New() failed: %v", err)
	}
	th, err := New(limiter)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := th.Do(context.Background(), func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}); err != nil {
			t.Fatalf("Do() unexpected error: %v", err)
		}
	}

	now = now.Add(time.Second)
	limiter.Accept(1)

	if s := limiter.Stat(); s.AverageTimeMs < 5 {
		t.Errorf("AverageTimeMs = %d, want >= 5", s.AverageTimeMs)
	}
}

func TestRoundTripper(t *testing.T) {
	var callCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := &countingAcceptor{left: 2}
	rt, err := NewRoundTripper(a, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: rt}

	var failed int
	for i := 0; i < 4; i++ {
		resp, err := client.Get(server.URL)
		if err != nil {
			if !errors.Is(err, ErrThrottled) {
				t.Errorf("request %d: exp ErrThrottled, got: %v", i, err)
			}
			failed++
			continue
		}
		resp.Body.Close()
	}

	if failed != 2 {
		t.Errorf("expected 2 throttled requests; got %d", failed)
	}
	if got := atomic.LoadInt32(&callCount); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
	if a.added <= 0 {
		t.Error("round trip time should be recorded")
	}
}
