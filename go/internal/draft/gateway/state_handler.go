package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// StateProvider assembles full draft snapshots.
type StateProvider interface {
	DraftLookup
	GetDraftState(ctx context.Context, id uuid.UUID) (*models.DraftState, error)
}

// StateHandler serves the full-state resync endpoint clients call after
// connecting, reconnecting or noticing a gap in the event stream.
type StateHandler struct {
	stateProvider StateProvider
	verifier      *auth.Verifier
}

func NewStateHandler(provider StateProvider, verifier *auth.Verifier) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
		verifier:      verifier,
	}
}

// HandleGetDraftState handles GET /api/drafts/{id}/state
func (h *StateHandler) HandleGetDraftState(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid draft ID format", http.StatusBadRequest)
		return
	}

	if _, err := authorizeDraft(r, h.verifier, h.stateProvider, draftID); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.stateProvider.GetDraftState(r.Context(), draftID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, state)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/drafts/{id}/state", h.HandleGetDraftState)
}
