package json

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgellow/jobfront/internal/log"
)

// ErrorResponse is the body used by API-style endpoints (GitHub proxy, validation)
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the body used by the browser-facing auth endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteResponse writes a JSON response with the given status code
func WriteResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// WriteError writes {"error": message}
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	if err := WriteResponse(w, statusCode, ErrorResponse{Error: message}); err != nil {
		http.Error(w, message, statusCode)
	}
}

// WriteMessage writes {"message": message}
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	if err := WriteResponse(w, statusCode, MessageResponse{Message: message}); err != nil {
		http.Error(w, message, statusCode)
	}
}

// WriteUnauthorized writes a 401 with a message body
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusUnauthorized, message)
}

// WriteBearerChallenge writes a 401 with a WWW-Authenticate Bearer challenge (RFC 6750 section 3).
// errorCode is omitted from the challenge when empty.
func WriteBearerChallenge(w http.ResponseWriter, realm, errorCode, message string) {
	challenge := fmt.Sprintf(`Bearer realm="%s"`, escapeQuotedString(realm))
	if errorCode != "" {
		challenge += fmt.Sprintf(`, error="%s"`, escapeQuotedString(errorCode))
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteMessage(w, http.StatusUnauthorized, message)
}

// escapeQuotedString escapes backslash and double-quote for an RFC 9110 quoted-string
func escapeQuotedString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}
