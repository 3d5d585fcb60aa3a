package api

import (
	"net/http"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/janitor"
)

// AdminHandler exposes maintenance operations to operators.
type AdminHandler struct {
	Janitor   *janitor.Janitor
	Retention time.Duration
}

// Cleanup handles POST /api/admin/cleanup.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	res, err := h.Janitor.Sweep(r.Context(), window)
	if err != nil {
		writeError(w, r, apperr.Unavailable("running cleanup", err))
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Preview handles GET /api/admin/cleanup.
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	p, err := h.Janitor.Preview(r.Context(), window)
	if err != nil {
		writeError(w, r, apperr.Unavailable("previewing cleanup", err))
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

func (h *AdminHandler) window(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("retention")
	if raw == "" {
		return h.Retention, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		jsonError(w, http.StatusBadRequest, "retention must be a positive duration such as 168h")
		return 0, false
	}
	return d, true
}
