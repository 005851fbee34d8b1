package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/pedigest/internal/store"
)

// MaxRetries bounds insert attempts per batch.
const MaxRetries = 3

const maxBackoff = 30 * time.Second

// IsRetryable reports whether err carries a retryable store status.
func IsRetryable(err error) bool {
	var retryErr *store.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns the wait before retrying attempt n (0-indexed):
// exponential growth capped at 30s plus up to 50% jitter.
func Backoff(attempt int) time.Duration {
	base := min(time.Duration(1<<attempt)*time.Second, maxBackoff)
	return base + time.Duration(rand.Int64N(int64(base)/2))
}
