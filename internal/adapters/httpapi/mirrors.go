package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/httpjson"
	"github.com/icedl/icedl/internal/ports"
)

type MirrorsHandler struct {
	mirrors *app.MirrorService
	sources *app.SourceService
	captcha *app.CaptchaService
	store   ports.SessionStore
}

func NewMirrorsHandler(mirrors *app.MirrorService, sources *app.SourceService, captcha *app.CaptchaService, store ports.SessionStore) *MirrorsHandler {
	return &MirrorsHandler{mirrors: mirrors, sources: sources, captcha: captcha, store: store}
}

func (h *MirrorsHandler) Routes(r chi.Router) {
	r.Post("/mirrors", h.load)
	r.Get("/metadata", h.metadata)
	r.Get("/sources/{quality}", h.list)
	r.Post("/captcha", h.submitCaptcha)
}

type loadMirrorsRequest struct {
	URL string `json:"url"`
}

func (h *MirrorsHandler) load(w http.ResponseWriter, r *http.Request) {
	var req loadMirrorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.URL == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing url")
		return
	}

	info, err := h.mirrors.Load(r.Context(), req.URL)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, info)
}

func (h *MirrorsHandler) metadata(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, app.Metadata(r.Context(), h.store))
}

func (h *MirrorsHandler) list(w http.ResponseWriter, r *http.Request) {
	quality := app.Quality(chi.URLParam(r, "quality"))
	sources, err := h.sources.List(r.Context(), quality)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, sources)
}

type captchaRequest struct {
	Answer string `json:"answer"`
}

type captchaResponse struct {
	Qualities []app.Quality `json:"qualities"`
}

func (h *MirrorsHandler) submitCaptcha(w http.ResponseWriter, r *http.Request) {
	var req captchaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	qualities, err := h.captcha.Submit(r.Context(), req.Answer)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, captchaResponse{Qualities: qualities})
}
