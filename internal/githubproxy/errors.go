package githubproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dgellow/jobfront/internal/idp"
	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
	"golang.org/x/oauth2"
)

// MissingCodeError is returned when no authorization code was supplied
type MissingCodeError struct{}

func (*MissingCodeError) Error() string { return "Authorization code is required" }

// TokenExchangeError is returned when GitHub refuses the code or returns no usable token
type TokenExchangeError struct {
	Message string
}

func (e *TokenExchangeError) Error() string { return e.Message }

// UpstreamError is returned on transport failures and unexpected GitHub responses
type UpstreamError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Status     string // upstream status text, when there was a response
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("%s: upstream returned %s", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": upstream error"
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Detail is the client-facing message: the upstream status text when GitHub answered,
// a generic message when no response was received.
func (e *UpstreamError) Detail() string {
	if e.Status == "" {
		return "Internal server error"
	}
	return fmt.Sprintf("GitHub %s failed: %s", e.Op, e.Status)
}

// classifyExchangeError maps an oauth2 exchange failure onto the proxy error types
func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return &UpstreamError{Op: "token exchange", StatusCode: re.Response.StatusCode, Status: re.Response.Status, Err: err}
		}
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = string(re.Body)
		}
		if msg == "" && re.Response != nil {
			msg = re.Response.Status
		}
		return &TokenExchangeError{Message: msg}
	}

	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UpstreamError{Op: "token exchange", Err: err}
	}

	// e.g. a 200 response without an access_token
	return &TokenExchangeError{Message: err.Error()}
}

// classifyAPIError wraps a GitHub API failure as an UpstreamError
func classifyAPIError(op string, err error) error {
	var apiErr *idp.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Op: op, StatusCode: apiErr.StatusCode, Status: apiErr.Status, Err: err}
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// writeError renders a proxy error as a JSON {error} body
func writeError(w http.ResponseWriter, err error) {
	var missing *MissingCodeError
	var exchange *TokenExchangeError
	var upstream *UpstreamError
	var badURL *InvalidRepoURLError

	switch {
	case errors.As(err, &missing):
		jsonwriter.WriteBadRequest(w, missing.Error())
	case errors.As(err, &badURL):
		jsonwriter.WriteBadRequest(w, badURL.Error())
	case errors.As(err, &exchange):
		log.LogWarnWithFields("githubproxy", "Token exchange rejected", map[string]any{
			"error": exchange.Message,
		})
		jsonwriter.WriteBadRequest(w, exchange.Message)
	case errors.As(err, &upstream):
		// an unknown user or repository is a bad lookup, not a server fault
		if upstream.StatusCode == http.StatusNotFound {
			jsonwriter.WriteBadRequest(w, upstream.Detail())
			return
		}
		log.LogErrorWithFields("githubproxy", "Upstream request failed", map[string]any{
			"op":     upstream.Op,
			"status": upstream.Status,
			"error":  err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, upstream.Detail())
	default:
		log.LogErrorWithFields("githubproxy", "Upstream request failed", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Internal server error")
	}
}
