package transportx

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Policy decides which outcomes are worth another attempt.
type Policy struct {
	// TransientStatuses lists response codes that trigger a retry.
	TransientStatuses []int
}

// DefaultPolicy retries gateway and server-side failures.
func DefaultPolicy() Policy {
	return Policy{TransientStatuses: []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}}
}

// WithNotFound returns a copy of p that also retries 404. Some upstreams
// answer 404 while a resource is still propagating.
func (p Policy) WithNotFound() Policy {
	if p.RetryableStatus(http.StatusNotFound) {
		return p
	}
	out := slices.Clone(p.TransientStatuses)
	return Policy{TransientStatuses: append(out, http.StatusNotFound)}
}

func (p Policy) RetryableStatus(code int) bool {
	return slices.Contains(p.TransientStatuses, code)
}

// CheckRetry implements retryablehttp.CheckRetry. Connectivity and timeout
// faults are classified by retryablehttp; responses are matched against
// TransientStatuses. A done context always stops the sequence.
func (p Policy) CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return p.RetryableStatus(resp.StatusCode), nil
}

// Backoff returns the wait before retry number attempt (1-based).
type Backoff func(attempt int) time.Duration

// Fixed waits the same amount before every retry.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Exponential waits unit*2^attempt, capped at limit when limit > 0.
func Exponential(unit, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		// Clamp the shift so large attempt counts cannot overflow.
		d := unit << min(attempt, 30)
		if limit > 0 && (d > limit || d <= 0) {
			return limit
		}
		return d
	}
}
