package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/chartcrafter/chartcrafter"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type chartPage struct {
	Chart      chartcrafter.Chart
	Width      int
	Height     int
	ExpiresAt  string
	ExpiresOn  string
	Privileged bool
	Expired    bool
}

type errorPage struct {
	Status int
	Title  string
}

func newChartPage(view chartcrafter.View, width, height int, now time.Time) chartPage {
	expiresAt := view.Chart.ExpiresAt.UTC()
	return chartPage{
		Chart:      view.Chart,
		Width:      width,
		Height:     height,
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		ExpiresOn:  expiresAt.Format("January 2, 2006 at 15:04 MST"),
		Privileged: view.Privileged,
		Expired:    view.Chart.IsExpired(now),
	}
}

// renderPage executes the named template into a buffer first so a template
// error can still produce a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeErrorPage(w http.ResponseWriter, status int) {
	renderPage(w, status, "error", errorPage{Status: status, Title: http.StatusText(status)})
}
