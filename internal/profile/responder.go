// Package profile serves the authenticated provider profile with completeness advisories.
package profile

import (
	"net/http"

	"github.com/dgellow/jobfront/internal/idp"
	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/session"
)

// Response is the body of GET /profile
type Response struct {
	Profile         *idp.Profile      `json:"profile"`
	Recommendations map[string]string `json:"recommendations"`
}

// Responder answers profile requests using the identity attached by the session middleware
type Responder struct {
	recommender Recommender
}

// NewResponder creates a responder. A nil recommender disables recommendations.
func NewResponder(recommender Recommender) *Responder {
	if recommender == nil {
		recommender = Disabled{}
	}
	return &Responder{recommender: recommender}
}

// GetProfile writes the caller's profile or 401 when no identity is attached
func (rs *Responder) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := session.IdentityFromContext(r.Context())
	if !ok || identity.Profile == nil {
		jsonwriter.WriteUnauthorized(w, "Not authenticated")
		return
	}

	recommendations := rs.recommender.Recommend(identity.Profile)
	if recommendations == nil {
		recommendations = map[string]string{}
	}

	log.LogTraceWithFields("profile", "Serving profile", map[string]any{
		"user":            identity.UserID,
		"provider":        identity.Provider,
		"recommendations": len(recommendations),
	})

	if err := jsonwriter.WriteResponse(w, http.StatusOK, Response{
		Profile:         identity.Profile,
		Recommendations: recommendations,
	}); err != nil {
		log.LogError("Failed to write profile response: %v", err)
	}
}
