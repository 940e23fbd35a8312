// Package resilience retries transient failures with exponential backoff.
//
// Cluster workers use it to publish results through Redis hiccups and to
// pace their polling after connection errors:
//
//	err := resilience.Do(ctx, resilience.DefaultBackoff(), func(ctx context.Context) error {
//	    return rdb.Push(ctx, key, value)
//	})
package resilience
