package authsdk

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
)

// SDKClient talks to the gatekeep API. It covers the unauthenticated
// endpoints and hands out Sessions for the rest.
type SDKClient struct {
	BaseURL   string
	Transport *transportx.Transport
}

// DefaultTransportConfig retries only 503, since the API answers 502 and 504
// itself when a third-party call it proxies has failed.
func DefaultTransportConfig() transportx.Config {
	return transportx.Config{
		MaxAttempts: 3,
		Timeout:     10 * time.Second,
		Backoff:     transportx.Exponential(100*time.Millisecond, 2*time.Second),
		Policy:      transportx.Policy{TransientStatuses: []int{http.StatusServiceUnavailable}},
	}
}

// NewSDKClient creates a client using DefaultTransportConfig. Options are
// passed to transportx.New.
func NewSDKClient(baseURL string, opts ...transportx.Option) *SDKClient {
	return &SDKClient{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		Transport: transportx.New(DefaultTransportConfig(), opts...),
	}
}

// NewSessionFromTokens wraps tokens obtained earlier, for example ones kept
// in a keychain between runs.
func (c *SDKClient) NewSessionFromTokens(pair TokenPair) *Session {
	return newSession(c, &pair)
}
