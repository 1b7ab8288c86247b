// Package tokenfence provides an interval-aware token bucket rate limiter.
//
// An IntervalRateLimiter combines two gates. A token bucket refills
// continuously at tokensPerInterval per interval, and a hard cap allows at
// most tokensPerInterval tokens inside each fixed interval window. The cap
// keeps tokens saved up just before a window boundary from being spent as a
// burst just after it, which matters when enforcing a third-party quota such
// as an hourly API budget.
//
// # Quick Start
//
//	limiter, err := tokenfence.New(5000, core.Hour)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if limiter.Accept(1) {
//	    callGitHub()
//	}
//
// # Statistics
//
// Each limiter tracks accepted and incoming counts for the open window and
// publishes them when the window closes:
//
//	limiter, _ := tokenfence.New(10, core.Second,
//	    tokenfence.WithStatCallback(func(s tokenfence.Stat) {
//	        fmt.Printf("%d/%d accepted, avg %dms\n", s.Accepted, s.Incoming, s.AverageTimeMs)
//	    }),
//	)
//
// AverageTimeMs is computed from samples fed with AddTime only.
//
// # Lazy Windows
//
// Nothing runs in the background. Refill and window rollover are computed
// from the wall clock at the start of each call, so an idle limiter closes
// its window on the next call. A window during which no call arrived reports
// zero counts rather than the numbers of the last active window.
//
// # Configuration
//
// Named limiters can be loaded from YAML and kept in a Registry:
//
//	limiters:
//	  github:
//	    tokens_per_interval: 5000
//	    interval: hour
//	  search:
//	    tokens_per_interval: 10
//	    interval: "250"   # milliseconds
//
// A Watcher reloads the file on change and resizes limiters in place with
// SetLimit.
package tokenfence
