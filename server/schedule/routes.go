package serverschedule

import (
	"context"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
	"github.com/s4sahiko/Timetable-Sync-Pro/server/session"
)

func PopulateScheduleRoutes(
	r *chi.Router,
	orch extraction.Orchestrator,
	sessions *session.Store,
	cfg *config.Config,
	logger slog.Logger,
) {
	scheduleHandler := scheduleHandler{
		orch:     orch,
		sessions: sessions,
		cfg:      cfg,
		logger:   &logger,
	}

	(*r).Post("/api/analyze", scheduleHandler.uploadAndAnalyze)
	(*r).Route("/api/schedule", func(r chi.Router) {
		r.Use(scheduleHandler.requireSession)
		r.Get("/", scheduleHandler.listEntries)
		r.Post("/", scheduleHandler.addEntry)
		r.Route("/{index}", func(r chi.Router) {
			r.Use(populateIndex)
			r.Put("/", scheduleHandler.updateEntry)
			r.Delete("/", scheduleHandler.removeEntry)
		})
	})
	(*r).With(scheduleHandler.requireSession).
		Get("/download/timetable.ics", scheduleHandler.downloadICS)
}

// requireSession resolves the session cookie; everything past the upload
// step is meaningless without one.
func (h *scheduleHandler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.sessionFromRequest(r)
		if sess == nil {
			http.Error(w, "no active session, upload a timetable first", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), SessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func populateIndex(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "Invalid entry index param", http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), IndexKey, index)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
