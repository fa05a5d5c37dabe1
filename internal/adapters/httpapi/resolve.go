package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/httpjson"
)

type ResolveHandler struct {
	stack *app.StackService
}

func NewResolveHandler(stack *app.StackService) *ResolveHandler {
	return &ResolveHandler{stack: stack}
}

func (h *ResolveHandler) Routes(r chi.Router) {
	r.Post("/resolve", h.resolve)
	r.Get("/sources/{index}/parts/{part}", h.part)
	r.Post("/playback/watched", h.watched)
}

type resolveRequest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Stacked bool   `json:"stacked"`
}

type resolveResponse struct {
	Entries []app.PlaylistEntry `json:"entries"`
}

// resolve transforme une source (simple ou empilée) en playlist de liens
// directs. Une playlist vide sans erreur signifie un échec soft côté
// hébergeur: rien à jouer, pas de message d'erreur.
func (h *ResolveHandler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.URL == "" && !req.Stacked {
		httpjson.WriteError(w, http.StatusBadRequest, "missing url")
		return
	}

	entries, err := h.stack.Resolve(r.Context(), req.Name, req.URL, req.Stacked)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, resolveResponse{Entries: entries})
}

type watchedRequest struct {
	PartDurations []float64 `json:"partDurations"`
	Position      float64   `json:"position"`
}

type watchedResponse struct {
	Watched   bool    `json:"watched"`
	Threshold float64 `json:"threshold"`
}

// watched dit si une lecture (éventuellement multi-part) compte comme vue,
// position relative à la dernière part.
func (h *ResolveHandler) watched(w http.ResponseWriter, r *http.Request) {
	var req watchedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.PartDurations) == 0 {
		httpjson.WriteError(w, http.StatusBadRequest, "missing part durations")
		return
	}

	watched, threshold, err := h.stack.Watched(r.Context(), req.PartDurations, req.Position)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, watchedResponse{Watched: watched, Threshold: threshold})
}

func (h *ResolveHandler) part(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid source index")
		return
	}
	part, err := strconv.Atoi(chi.URLParam(r, "part"))
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid part number")
		return
	}

	u, err := h.stack.GetPart(r.Context(), index, part)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"url": u})
}
