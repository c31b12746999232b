package githubproxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 16 << 10

// OAuthRequest is the body of POST /github/oauth
type OAuthRequest struct {
	Code string `json:"code" validate:"required,max=512"`
}

// OAuthResponse is returned once the code has been exchanged
type OAuthResponse struct {
	Username string `json:"username"`
}

// Handlers serves the GitHub proxy endpoints
type Handlers struct {
	client   *Client
	validate *validator.Validate
}

// NewHandlers creates the proxy handlers
func NewHandlers(client *Client) *Handlers {
	return &Handlers{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// OAuth handles POST /github/oauth
func (h *Handlers) OAuth(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			jsonwriter.WriteBadRequest(w, "Authorization code is too long")
			return
		}
		writeError(w, &MissingCodeError{})
		return
	}

	token, err := h.client.ExchangeCodeForToken(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.client.FetchIdentity(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	log.LogInfoWithFields("githubproxy", "GitHub code exchanged", map[string]any{
		"username": profile.Username,
	})
	if err := jsonwriter.WriteResponse(w, http.StatusOK, OAuthResponse{Username: profile.Username}); err != nil {
		log.LogError("Failed to write oauth response: %v", err)
	}
}

// Repos handles GET /github/repos/{username}
func (h *Handlers) Repos(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := h.validate.Var(username, "required,max=39,excludesall=/?#%"); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid username")
		return
	}

	withLanguages, _ := strconv.ParseBool(r.URL.Query().Get("languages"))

	var (
		repos []Repo
		err   error
	)
	if withLanguages {
		repos, err = h.client.ListReposWithLanguages(r.Context(), username)
	} else {
		repos, err = h.client.ListRepos(r.Context(), username)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := jsonwriter.WriteResponse(w, http.StatusOK, repos); err != nil {
		log.LogError("Failed to write repos response: %v", err)
	}
}

// Languages handles GET /github/languages?repoUrl=
func (h *Handlers) Languages(w http.ResponseWriter, r *http.Request) {
	repoURL := r.URL.Query().Get("repoUrl")
	if repoURL == "" {
		jsonwriter.WriteBadRequest(w, "repoUrl is required")
		return
	}

	langs, err := h.client.RepoLanguages(r.Context(), repoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := jsonwriter.WriteResponse(w, http.StatusOK, langs); err != nil {
		log.LogError("Failed to write languages response: %v", err)
	}
}
