package servermanage

import (
	"github.com/go-chi/chi/v5"
)

func PopulateManagementRoutes(r *chi.Router, stream *LogStream) {
	(*r).Get("/watch-logs", stream.loggingWebSocket)
}
