package serverschedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services"
	"github.com/s4sahiko/Timetable-Sync-Pro/ics"
	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
	"github.com/s4sahiko/Timetable-Sync-Pro/server/session"
	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

type scheduleHandler struct {
	orch     extraction.Orchestrator
	sessions *session.Store
	cfg      *config.Config
	logger   *slog.Logger
}

type ScheduleCtxParam int

const (
	SessionKey ScheduleCtxParam = iota
	IndexKey
)

// wire representation of one entry; times use the same HH:MM form the
// parser accepts
type entryJSON struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Subject  string `json:"subject"`
	Location string `json:"location,omitempty"`
}

func toEntryJSON(e timetable.ClassEntry) entryJSON {
	return entryJSON{
		Day:      e.Day.String(),
		Start:    e.Start.String(),
		End:      e.End.String(),
		Subject:  e.Subject,
		Location: e.Location,
	}
}

func (j entryJSON) toEntry() (timetable.ClassEntry, error) {
	var entry timetable.ClassEntry
	day, ok := timetable.ParseWeekday(j.Day)
	if !ok {
		return entry, fmt.Errorf("%w: unknown day %q", timetable.ErrInvalidEntry, j.Day)
	}
	start, err := timetable.ParseClock(j.Start)
	if err != nil {
		return entry, fmt.Errorf("%w: %w", timetable.ErrInvalidEntry, err)
	}
	end, err := timetable.ParseClock(j.End)
	if err != nil {
		return entry, fmt.Errorf("%w: %w", timetable.ErrInvalidEntry, err)
	}
	return timetable.ClassEntry{
		Day:      day,
		Start:    start,
		End:      end,
		Subject:  j.Subject,
		Location: j.Location,
	}, nil
}

type scheduleJSON struct {
	Entries  []entryJSON              `json:"entries"`
	Warnings []timetable.ParseWarning `json:"warnings"`
}

func toScheduleJSON(sess *session.Session) scheduleJSON {
	entries := sess.Schedule.Entries()
	out := scheduleJSON{
		Entries:  make([]entryJSON, len(entries)),
		Warnings: sess.Warnings,
	}
	for i, entry := range entries {
		out.Entries[i] = toEntryJSON(entry)
	}
	return out
}

func (h *scheduleHandler) writeJSON(w http.ResponseWriter, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		h.logger.Error("Could not marshal response", "err", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// writeMutationError maps model errors onto status codes: overlaps are
// conflicts the user can resolve, bad indexes mean the entry is gone.
func (h *scheduleHandler) writeMutationError(w http.ResponseWriter, err error) {
	var overlap *timetable.OverlapError
	switch {
	case errors.As(err, &overlap):
		http.Error(w, overlap.Error(), http.StatusConflict)
	case errors.Is(err, timetable.ErrIndexOutOfRange):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, timetable.ErrInvalidEntry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Unexpected mutation error", "err", err)
		http.Error(w, http.StatusText(500), 500)
	}
}

// uploadAndAnalyze takes the multipart image upload, runs the extraction
// pipeline and binds the result to a (new or existing) session.
func (h *scheduleHandler) uploadAndAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, extraction.MaxImageBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "no file part in upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	schedule, warnings, err := h.orch.ProcessImage(ctx, image, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, extraction.ErrImageTooLarge),
			errors.Is(err, extraction.ErrUnsupportedImage):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrExtraction):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			h.logger.Error("Could not process image", "err", err)
			http.Error(w, http.StatusText(500), 500)
		}
		return
	}

	sess := h.sessionFromRequest(r)
	var token string
	if sess == nil {
		token, sess = h.sessions.Create()
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	sess.Schedule = schedule
	sess.Warnings = warnings

	h.writeJSON(w, toScheduleJSON(sess))
}

func (h *scheduleHandler) sessionFromRequest(r *http.Request) *session.Session {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, ok := h.sessions.Get(cookie.Value)
	if !ok {
		return nil
	}
	return sess
}

func (h *scheduleHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(SessionKey).(*session.Session)
	h.writeJSON(w, toScheduleJSON(sess))
}

func (h *scheduleHandler) addEntry(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(SessionKey).(*session.Session)

	var body entryJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid entry body", http.StatusBadRequest)
		return
	}
	entry, err := body.toEntry()
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	if err := sess.Schedule.Add(entry); err != nil {
		h.writeMutationError(w, err)
		return
	}
	h.writeJSON(w, toScheduleJSON(sess))
}

func (h *scheduleHandler) updateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := ctx.Value(SessionKey).(*session.Session)
	index := ctx.Value(IndexKey).(int)

	var body entryJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid entry body", http.StatusBadRequest)
		return
	}
	entry, err := body.toEntry()
	if err != nil {
		h.writeMutationError(w, err)
		return
	}
	if err := sess.Schedule.Update(index, entry); err != nil {
		h.writeMutationError(w, err)
		return
	}
	h.writeJSON(w, toScheduleJSON(sess))
}

func (h *scheduleHandler) removeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := ctx.Value(SessionKey).(*session.Session)
	index := ctx.Value(IndexKey).(int)

	if err := sess.Schedule.Remove(index); err != nil {
		h.writeMutationError(w, err)
		return
	}
	h.writeJSON(w, toScheduleJSON(sess))
}

// downloadICS serves the export artifact. anchor and tz come from query
// params; without an anchor the export starts from today so the calendar
// begins with the current week, matching what the upload flow promises.
func (h *scheduleHandler) downloadICS(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(SessionKey).(*session.Session)

	anchor := time.Now()
	if rawAnchor := r.URL.Query().Get("anchor"); rawAnchor != "" {
		parsed, err := time.Parse(time.DateOnly, rawAnchor)
		if err != nil {
			http.Error(w, "invalid anchor date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		anchor = parsed
	}
	tz := h.cfg.Timezone
	if rawTz := r.URL.Query().Get("tz"); rawTz != "" {
		tz = rawTz
	}

	document, err := ics.Export(sess.Schedule, anchor, ics.Options{
		Timezone:     tz,
		CalendarName: h.cfg.CalendarName,
	})
	if err != nil {
		switch {
		case errors.Is(err, ics.ErrEmptySchedule):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ics.ErrUnknownTimezone):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Could not export schedule", "err", err)
			http.Error(w, http.StatusText(500), 500)
		}
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=timetable_schedule.ics`)
	if _, err := w.Write(document); err != nil {
		h.logger.Error("Error writing calendar response", "err", err)
	}
}
