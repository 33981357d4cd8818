package main

import (
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/report"
	"github.com/Simplici0/printcost/internal/settings"
	"github.com/Simplici0/printcost/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"money": report.Money,
	"inc":   func(i int) int { return i + 1 },
}

// lastResult is the most recent successful computation. It feeds the results
// panel and the report export.
type lastResult struct {
	Reference string
	Inputs    settings.Document
	Result    pricing.Result
	Summary   report.Summary
}

type server struct {
	store     *store.Store
	opts      pricing.Options
	maxUpload int64

	// mu serialises every request that reads or replaces the working
	// document, so compute and depletion form one step.
	mu   sync.Mutex
	last *lastResult
}

func newServer(st *store.Store, opts pricing.Options) *server {
	return &server{store: st, opts: opts, maxUpload: defaultMaxUpload}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handleHome)
	r.Post("/calculate", s.handleCalculate)
	r.Post("/spools", s.handleAddSpool)
	r.Post("/spools/{index}/remove", s.handleRemoveSpool)
	r.Post("/reset", s.handleReset)
	r.Post("/gcode", s.handleGcodeUpload)
	r.Get("/settings/export", s.handleSettingsExport)
	r.Post("/settings/import", s.handleSettingsImport)
	r.Get("/profiles", s.handleProfilesList)
	r.Post("/profiles", s.handleProfileSave)
	r.Post("/profiles/{name}/load", s.handleProfileLoad)
	r.Post("/profiles/{name}/delete", s.handleProfileDelete)
	r.Get("/export", s.handleExport)
	r.Get("/jobs", s.handleJobsList)
	r.Get("/jobs/{reference}", s.handleJobDetail)
	r.Get("/jobs/{reference}/text", s.handleJobText)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func (s *server) renderTemplate(w http.ResponseWriter, status int, page string, data any) {
	templates, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(
		templateFS,
		"templates/layout.html",
		"templates/"+page,
	)
	if err != nil {
		logger.Error("parse template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		logger.Error("render template", zap.String("page", page), zap.Error(err))
		return
	}
}
