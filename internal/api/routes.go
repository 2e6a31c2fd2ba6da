package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-exporter/internal/export"
	"github.com/heimdex/heimdex-exporter/internal/session"
)

const (
	defaultExportsLimit = 20
	maxExportsLimit     = 200
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoopbackGuard())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/export", exportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Get("/session", getSessionHandler(cfg))
		r.Put("/session", putSessionHandler(cfg))
		r.Delete("/session", deleteSessionHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		}
		status := http.StatusOK

		if cfg.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Database.Ping(ctx); err != nil {
				cfg.Logger.Warn("database ping failed", "error", err)
				resp.Status = "degraded"
				resp.Database = "unavailable"
				status = http.StatusServiceUnavailable
			} else {
				resp.Database = "ok"
			}
		}

		WriteJSON(w, status, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := cfg.Control.State()
		resp := StatusResponse{
			State: state.String(),
			Busy:  state == export.StateRequesting,
			Button: ButtonResponse{
				Title:        export.ButtonTitle,
				LoadingProps: cfg.Control.Loading(),
			},
			DownloadDir: cfg.DownloadDir,
		}

		if s, err := cfg.Repository.GetActiveSession(ctx); err == nil && s != nil {
			resp.ActiveSession = s.ID
		}

		if exports, err := cfg.Repository.ListExports(ctx, 1); err == nil && len(exports) > 0 {
			last := ExportToResponse(exports[0])
			resp.LastExport = &last
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// exportHandler runs one export cycle and answers when it ends. The cycle is
// detached from the request so a client hanging up does not leave a partial
// download behind.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := cfg.Control.Activate(context.WithoutCancel(r.Context()))
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, ExportToResponse(rec))
		case errors.Is(err, export.ErrBusy):
			WriteError(w, http.StatusConflict, "an export is already in progress", "BUSY")
		case errors.Is(err, export.ErrNoSession):
			WriteError(w, http.StatusPreconditionFailed, export.NoSessionMessage, "NO_SESSION")
		case rec == nil:
			cfg.Logger.Error("export could not start", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to resolve active session", "INTERNAL_ERROR")
		default:
			resp := ExportToResponse(rec)
			WriteJSON(w, http.StatusBadGateway, ExportFailureResponse{
				Error:  export.FailurePrefix + rec.Error,
				Code:   "EXPORT_FAILED",
				Export: &resp,
			})
		}
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultExportsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = min(n, maxExportsLimit)
		}

		exports, err := cfg.Repository.ListExports(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportsResponse{Exports: make([]ExportResponse, len(exports))}
		for i, e := range exports {
			resp.Exports[i] = ExportToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get export", "INTERNAL_ERROR")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ExportToResponse(rec))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Repository.GetActiveSession(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get session", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func putSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := strings.TrimSpace(req.SessionID)
		if id == "" {
			WriteError(w, http.StatusBadRequest, "session_id is required", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		if err := cfg.Repository.SetActiveSession(ctx, id, session.SourceAPI); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to set session", "INTERNAL_ERROR")
			return
		}

		s, err := cfg.Repository.GetActiveSession(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get session", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Repository.ClearActiveSession(r.Context()); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to clear session", "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
