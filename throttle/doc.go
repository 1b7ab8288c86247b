// Package throttle adapts any token acceptor, typically a
// *tokenfence.IntervalRateLimiter, to function calls and outbound HTTP.
//
// # Usage
//
// Wrap a function so it only fires when a token is granted:
//
//	notify := throttle.Wrap(limiter, func(msg string) { send(msg) })
//	if !notify("build finished") {
//		// dropped
//	}
//
// Or wrap a transport:
//
//	rt, err := throttle.NewRoundTripper(limiter,
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// Nothing in this package waits for tokens. A denied call returns
// immediately with [ErrThrottled].
package throttle
