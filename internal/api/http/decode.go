package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeBody reads a JSON object from r into dst. Failures come back as the
// *authsdk.APIError to send, never as decoder text.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) *authsdk.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var (
		typeErr *json.UnmarshalTypeError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return authsdk.ErrEmptyPayload
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return authsdk.NewAPIError(http.StatusBadRequest,
			fmt.Sprintf("Incorrect datatype received for parameter: '%s'", typeErr.Field))
	case errors.As(err, &sizeErr):
		return authsdk.NewAPIError(http.StatusRequestEntityTooLarge, "Payload too large")
	default:
		return authsdk.ErrInvalidJSON
	}
}
