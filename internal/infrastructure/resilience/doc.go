/*
Package resilience provides a circuit breaker so callers fail fast while a
dependency is unavailable.

The hub client wraps every evaluation round trip in a breaker: repeated
timeouts or transport errors open it, while evaluation failures reported by
the sandbox are classified as successes through Settings.IsSuccessful.

# Usage

	breaker := resilience.New("eval-hub", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var evalErr *hub.EvalError
			return err == nil || errors.As(err, &evalErr)
		},
	})

	tool, err := resilience.Execute(breaker, func() (json.RawMessage, error) {
		return roundTrip(ctx, req)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
