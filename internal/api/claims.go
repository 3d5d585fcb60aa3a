package api

import (
	"net/http"

	"github.com/erazemk/lostfound/internal/claims"
)

// ClaimsHandler handles claim endpoints.
type ClaimsHandler struct {
	Claims *claims.Manager
}

type createClaimRequest struct {
	ItemID  string `json:"itemId"`
	Message string `json:"message"`
	// Proof is accepted as an alias of Message.
	Proof string `json:"proof"`
}

type decideClaimRequest struct {
	Status        string `json:"status"`
	MeetupAddress string `json:"meetupAddress"`
}

// Create handles POST /api/claims.
func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req createClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" {
		jsonError(w, http.StatusBadRequest, "itemId required")
		return
	}
	proof := req.Message
	if proof == "" {
		proof = req.Proof
	}

	claim, err := h.Claims.Create(r.Context(), caller, req.ItemID, proof)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, claim)
}

// ListForItem handles GET /api/items/{id}/claims.
func (h *ClaimsHandler) ListForItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	list, err := h.Claims.ListForItem(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Mine handles GET /api/claims/mine.
func (h *ClaimsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	list, err := h.Claims.ListMine(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Decide handles PATCH /api/claims/{id}.
func (h *ClaimsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req decideClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claim, err := h.Claims.Decide(r.Context(), caller, r.PathValue("id"), req.Status, req.MeetupAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// Received handles PATCH /api/claims/{id}/received.
func (h *ClaimsHandler) Received(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	claim, err := h.Claims.MarkReceived(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}
