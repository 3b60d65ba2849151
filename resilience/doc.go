// Package resilience holds the fault-tolerance patterns the relay puts around
// its upstream:
//   - Retry: re-attempts opening an upstream stream with exponential backoff
//   - CircuitBreaker: fails fast while the upstream keeps failing
//   - Bulkhead: bounds the number of streams relayed at once
//
// A started stream is never retried; only the open is.
//
//	br := resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig("upstream"))
//	resp, err := resilience.Retry(ctx, cfg.Retry, func() (*http.Response, error) {
//	    var resp *http.Response
//	    err := br.Execute(func() error {
//	        var err error
//	        resp, err = open(ctx)
//	        return err
//	    })
//	    return resp, err
//	})
package resilience
