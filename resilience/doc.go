// Package resilience provides the retry loop shared by upstream bootstrap
// and upstream calls. Delays come from a cenkalti/backoff BackOff, so the
// same loop serves fixed, exponential and immediate retries.
//
//	v, err := resilience.Retry(ctx, resilience.RetryConfig{
//	    MaxAttempts: 5,
//	    BackOff:     backoff.NewConstantBackOff(2 * time.Second),
//	}, func(attempt int) (T, error) { ... })
package resilience
