package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/agentsql/bridge/internal/apierror"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAPIError maps an *apierror.Error (or any error, defaulting to
// backend failure) to its HTTP status and a safe caller-facing message,
// per the common error-kind-to-status mapping §7 describes.
func writeAPIError(w http.ResponseWriter, err error) {
	kind := apierror.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apierror.KindAuthRequired:
		status = http.StatusUnauthorized
	case apierror.KindAuthInvalid:
		status = http.StatusUnauthorized
	case apierror.KindAccessDenied:
		status = http.StatusForbidden
	case apierror.KindNotFound:
		status = http.StatusNotFound
	case apierror.KindValidation:
		status = http.StatusBadRequest
	case apierror.KindBackendFailure:
		status = http.StatusInternalServerError
	}

	message := "internal error"
	if apiErr, ok := apierror.As(err); ok {
		message = apiErr.Message
	}
	writeJSONError(w, status, message)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
