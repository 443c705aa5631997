package handlers

import (
	"net/http"

	"github.com/upb/bolt-saas/backend/middleware"
	"github.com/upb/bolt-saas/backend/utils"
	"go.uber.org/zap"
)

// SessionResponse is the body of GET /api/saas/session
type SessionResponse struct {
	SaaSEnabled bool         `json:"saasEnabled"`
	Session     *SessionInfo `json:"session,omitempty"`
}

// SessionInfo describes the caller's workspace membership
type SessionInfo struct {
	Workspace WorkspaceInfo `json:"workspace"`
	Member    MemberInfo    `json:"member"`
}

// WorkspaceInfo identifies the session's workspace
type WorkspaceInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug,omitempty"`
	Name string `json:"name,omitempty"`
}

// MemberInfo identifies the session's member
type MemberInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SessionHandler reports the caller's workspace session
type SessionHandler struct {
	saasEnabled bool
	logger      *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(saasEnabled bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		saasEnabled: saasEnabled,
		logger:      logger,
	}
}

// HandleSession handles GET /api/saas/session. It runs behind
// OptionalSession; an anonymous caller gets "session": null.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if !h.saasEnabled {
		_ = utils.WriteJSON(w, http.StatusOK, SessionResponse{SaaSEnabled: false})
		return
	}

	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		// session must serialize as null rather than be omitted
		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"saasEnabled": true,
			"session":     nil,
		})
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, SessionResponse{
		SaaSEnabled: true,
		Session: &SessionInfo{
			Workspace: WorkspaceInfo{
				ID:   claims.WorkspaceID,
				Slug: claims.WorkspaceSlug,
				Name: claims.WorkspaceName,
			},
			Member: MemberInfo{
				ID:    claims.MemberID,
				Email: claims.Email,
				Role:  claims.Role,
			},
		},
	})
}
