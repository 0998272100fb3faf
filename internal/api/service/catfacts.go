package service

import (
	"context"
	"encoding/json"

	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
)

// DefaultCatFactsURL is the third-party endpoint behind GET /misc/cat-facts.
const DefaultCatFactsURL = "https://cat-fact.herokuapp.com/facts/random"

// CatFactsService relays a random fact from a public API through the
// retrying transport. The upstream document is passed on untouched.
type CatFactsService struct {
	Transport *transportx.Transport
	URL       string
}

// Random returns the upstream JSON body. Errors are the transport's:
// *transportx.ExhaustedError, *transportx.TimeoutError, *transportx.StatusError
// or the caller's context error.
func (s *CatFactsService) Random(ctx context.Context) (json.RawMessage, error) {
	url := s.URL
	if url == "" {
		url = DefaultCatFactsURL
	}

	var fact json.RawMessage
	if err := s.Transport.GetJSON(ctx, url, &fact); err != nil {
		return nil, err
	}
	return fact, nil
}
