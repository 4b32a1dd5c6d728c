package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	log "github.com/sirupsen/logrus"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
	servermanage "github.com/s4sahiko/Timetable-Sync-Pro/server/manage"
	serverschedule "github.com/s4sahiko/Timetable-Sync-Pro/server/schedule"
	"github.com/s4sahiko/Timetable-Sync-Pro/server/session"
)

func Serve(cfg *config.Config) {
	r := chi.NewRouter()
	cors := cors.New(cors.Options{
		// the review frontend may be served from elsewhere during development
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum age for preflight requests
	})
	r.Use(cors.Handler)
	r.Use(middleware.Logger)

	// the extraction logs also stream to the review page websocket
	logStream := servermanage.NewLogStream()
	log.SetOutput(io.MultiWriter(os.Stderr, logStream))

	orch := extraction.GetConfiguredOrchestrator(
		cfg.GeminiEndpoint, cfg.GeminiModel, cfg.RequestRetryCount)
	sessions := session.NewStore(session.DefaultTokenDuration)

	r.Group(func(r chi.Router) {
		serverschedule.PopulateScheduleRoutes(&r, orch, sessions, cfg, *slog.Default())
	})
	r.Route("/manage", func(r chi.Router) {
		servermanage.PopulateManagementRoutes(&r, logStream)
	})

	r.Get("/", http.RedirectHandler("/static/", 301).ServeHTTP)
	fileServer(r, "/static", http.Dir(filepath.Clean(cfg.StaticDir)))

	slog.Info("Running server on", "listen", cfg.Listen)
	http.ListenAndServe(cfg.Listen, r)
}

// https://github.com/go-chi/chi/blob/master/_examples/fileserver/main.go
func fileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
