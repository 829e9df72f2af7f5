package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	json.NewEncoder(w).Encode(data)
}

// WriteError writes err as an API error. Unexpected errors are logged with
// their full chain and reach the client only as a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	apiErr, expected := AsAPIError(err)
	entry := log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": apiErr.Status,
	})
	if expected {
		entry.Debugf("request rejected: %s", apiErr.Message)
	} else {
		entry.WithError(err).Error("request failed")
	}
	WriteJSON(w, apiErr.Status, ErrorBody{StatusCode: apiErr.Status, Message: apiErr.Message})
}

// DecodeJSON decodes the request body into dest.
func DecodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return BadRequest("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return BadRequest("Invalid request body")
	}
	return nil
}
