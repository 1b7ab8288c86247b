// Tokenfence serves named interval rate limiters over HTTP.
//
// Usage:
//
//	# Serve the limiters in limits.yaml on :8080
//	tokenfence serve --config limits.yaml
//
//	# Keep window history in Redis and reload limits when the file changes
//	tokenfence serve --config limits.yaml --redis localhost:6379 --watch
//
//	# Watch a limiter handle a burst of calls
//	tokenfence demo --rate 10 --interval second --calls 50 --pace 25
package main

func main() {
	Execute()
}
