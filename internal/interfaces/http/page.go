package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	DefaultAmount string
	Version       string
}

// Index renders the dashboard page; live data arrives over /api/market and /ws
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{DefaultAmount: h.defaultAmount, Version: h.version}
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Str("request_id", requestID(r)).Msg("Failed to render dashboard")
	}
}
