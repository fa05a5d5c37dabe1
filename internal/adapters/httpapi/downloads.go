package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/httpjson"
)

type DownloadsHandler struct {
	downloads *app.DownloadManager
}

func NewDownloadsHandler(downloads *app.DownloadManager) *DownloadsHandler {
	return &DownloadsHandler{downloads: downloads}
}

func (h *DownloadsHandler) Routes(r chi.Router) {
	r.Route("/downloads", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/active", h.active)
		r.Post("/cancel", h.cancel)
		r.Post("/info", h.info)
		r.Get("/{id}", h.get)
	})
}

type createDownloadRequest struct {
	URL        string `json:"url"`
	SourceName string `json:"sourceName"`
	// Play retarde la réponse du délai de bufferisation et rend le chemin
	// local, jouable pendant que le fichier grossit.
	Play bool `json:"play"`
}

type createDownloadResponse struct {
	Job      any    `json:"job"`
	PlayPath string `json:"playPath,omitempty"`
}

func (h *DownloadsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.URL == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing url")
		return
	}

	sreq := app.StartRequest{URL: req.URL, SourceName: req.SourceName}
	if req.Play {
		job, playPath, err := h.downloads.StartBuffered(r.Context(), sreq)
		if err != nil {
			writeAppError(w, err)
			return
		}
		httpjson.Write(w, http.StatusCreated, createDownloadResponse{Job: job, PlayPath: playPath})
		return
	}

	job, err := h.downloads.Start(r.Context(), sreq)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, createDownloadResponse{Job: job})
}

func (h *DownloadsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.downloads.List(r.Context(), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, jobs)
}

func (h *DownloadsHandler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.downloads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, job)
}

type activeResponse struct {
	Active bool   `json:"active"`
	Dest   string `json:"dest,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (h *DownloadsHandler) active(w http.ResponseWriter, r *http.Request) {
	dest, name, ok := h.downloads.Active(r.Context())
	httpjson.Write(w, http.StatusOK, activeResponse{Active: ok, Dest: dest, Name: name})
}

func (h *DownloadsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.Cancel(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

func (h *DownloadsHandler) info(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.RequestInfo(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "info requested"})
}
