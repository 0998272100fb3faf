package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
)

// CatFactsHandler relays a random cat fact from the upstream API.
type CatFactsHandler struct {
	CatFactsService *service.CatFactsService
}

// ServeHTTP handles GET /misc/cat-facts
//
//	@Summary		Random Cat Fact
//	@Description	Fetches a random fact from a public API through the retrying transport.
//	@Description	Anonymous callers are allowed; a bearer token, if sent, must still be valid.
//	@Tags			Misc
//	@Produce		json
//	@Success		200	{object}	authsdk.Envelope	"upstream document in data"
//	@Failure		401	{object}	authsdk.Envelope	"Invalid authentication token, or Token is outdated"
//	@Failure		502	{object}	authsdk.Envelope	"Upstream service unavailable"
//	@Failure		504	{object}	authsdk.Envelope	"Upstream service timed out"
//	@Router			/misc/cat-facts [get].
func (h *CatFactsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fact, err := h.CatFactsService.Random(ctx)
	if err != nil {
		log := slogx.FromContext(ctx)

		var statusErr *transportx.StatusError
		switch {
		case errors.Is(err, transportx.ErrTimeout):
			log.Warn("cat facts upstream timed out", "error", err)
			authsdk.ErrUpstreamTimeout.WriteError(w)
		case errors.Is(err, transportx.ErrExhausted), errors.As(err, &statusErr):
			log.Warn("cat facts upstream unavailable", "error", err)
			authsdk.ErrUpstreamUnavailable.WriteError(w)
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			log.Error("cat facts request failed", "error", err)
			authsdk.ErrUpstreamUnavailable.WriteError(w)
		}
		return
	}

	httpx.WriteOK(w, http.StatusOK, fact)
}
