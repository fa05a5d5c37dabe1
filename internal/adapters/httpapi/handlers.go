package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/buildinfo"
	"github.com/icedl/icedl/internal/httpjson"
	"github.com/icedl/icedl/internal/ports"
	"github.com/icedl/icedl/internal/resolver"
)

const defaultRequestTimeout = 120 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

// writeAppError traduit les erreurs métier en statuts HTTP. Les échecs
// d'hébergeur sortent en 502, le dossier occupé en 409.
func writeAppError(w http.ResponseWriter, err error) {
	var hostErr *resolver.HostError
	if errors.As(err, &hostErr) {
		httpjson.WriteError(w, http.StatusBadGateway, hostErr.Error())
		return
	}
	var coded *app.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case "invalid_params":
			httpjson.WriteError(w, http.StatusBadRequest, coded.Error())
		case "busy", "conflict":
			httpjson.WriteError(w, http.StatusConflict, coded.Error())
		case "captcha_failed":
			httpjson.WriteError(w, http.StatusUnprocessableEntity, coded.Error())
		case "network_error", "host_format":
			httpjson.WriteError(w, http.StatusBadGateway, coded.Error())
		default:
			httpjson.WriteError(w, http.StatusInternalServerError, coded.Error())
		}
		return
	}
	if errors.Is(err, ports.ErrNotFound) {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
}
