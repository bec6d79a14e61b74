package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftLookup resolves the league of a draft for authorization.
type DraftLookup interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
}

// WebSocketHandler handles WebSocket upgrade requests for draft connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	drafts            DraftLookup
	verifier          *auth.Verifier
}

// NewWebSocketHandler creates a new WebSocket handler. A nil verifier
// disables authentication.
func NewWebSocketHandler(cm *ConnectionManager, drafts DraftLookup, verifier *auth.Verifier) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		drafts:            drafts,
		verifier:          verifier,
	}
}

// HandleDraftConnection handles GET /ws/draft?draft_id=...
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.URL.Query().Get("draft_id"))
	if err != nil {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}

	claims, err := authorizeDraft(r, h.verifier, h.drafts, draftID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, claims.Subject, draftID); err != nil {
		// The upgrader already replied to the client.
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/draft", h.HandleDraftConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// authorizeDraft checks that the caller may watch a draft. Browsers cannot
// set headers on a WebSocket handshake, so the token may also come in the
// token query parameter.
func authorizeDraft(r *http.Request, verifier *auth.Verifier, drafts DraftLookup, draftID uuid.UUID) (*auth.Claims, error) {
	claims := &auth.Claims{Role: auth.RoleSystem}
	if verifier != nil {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			return nil, auth.ErrUnauthenticated
		}
		var err error
		if claims, err = verifier.Verify(token); err != nil {
			return nil, err
		}
	}

	draft, err := drafts.GetDraft(r.Context(), draftID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireLeagueMember(auth.WithClaims(r.Context(), claims), draft.LeagueID); err != nil {
		return nil, err
	}
	return claims, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "draft not found", http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("gateway request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
