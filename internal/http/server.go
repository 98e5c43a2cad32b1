package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/middleware/security"
	"moneymanager/internal/middleware/trace"
	"moneymanager/internal/services"
	"moneymanager/internal/shell"
	appweb "moneymanager/web"
)

// Service is the ledger surface the pages read and write.
type Service interface {
	shell.Service
	Export(ctx context.Context) ([]core.Transaction, error)
	Ping(ctx context.Context) error
}

// MirrorStatus reports the spreadsheet mirror when one runs in process.
type MirrorStatus interface {
	Stats() services.MirrorStats
}

type Deps struct {
	Service  Service
	Router   *shell.Router
	Exporter shell.Exporter
	Mirror   MirrorStatus // optional
	Logger   *log.Logger
	Now      func() time.Time
}

type Server struct {
	http.Server

	pages    map[string]*template.Template
	svc      Service
	router   *shell.Router
	exporter shell.Exporter
	mirror   MirrorStatus
	logger   *log.Logger
	now      func() time.Time
	trace    *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

var pageFiles = []string{
	"dashboard.html",
	"transactions.html",
	"categories.html",
	"reports.html",
}

// NewServer parses the embedded templates and configures routes, returning
// a ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Service == nil || deps.Router == nil || deps.Exporter == nil {
		return nil, errors.New("http server needs a service, a router and an exporter")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		svc:      deps.Service,
		router:   deps.Router,
		exporter: deps.Exporter,
		mirror:   deps.Mirror,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      now,
		started:  time.Now(),
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s.pages = pages

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /ipc", s.handleOperations)
	mux.HandleFunc("POST /ipc/{op}", s.handleIPC)
	mux.HandleFunc("GET /export/download", s.handleExportDownload)

	views := http.NewServeMux()
	views.HandleFunc("GET /{$}", s.handleDashboard)
	views.HandleFunc("GET /transactions", s.handleTransactions)
	views.HandleFunc("POST /transactions", s.handleCreateTransaction)
	views.HandleFunc("POST /transactions/{id}", s.handleUpdateTransaction)
	views.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)
	views.HandleFunc("GET /categories", s.handleCategories)
	views.HandleFunc("POST /categories", s.handleAddCategory)
	views.HandleFunc("POST /categories/{id}/delete", s.handleDeleteCategory)
	views.HandleFunc("GET /reports", s.handleReports)
	views.HandleFunc("POST /export", s.handleExport)
	views.HandleFunc("GET /ui/categories", s.handleCategoryOptions)
	mux.Handle("/", security.NoStore(views))

	s.trace = trace.NewMiddleware(extractClientIP, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Middleware(headers.Middleware(s.requireSameOrigin(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"money":      formatMoney,
		"monthName":  monthName,
		"monthLabel": monthLabel,
		"typeLabel":  typeLabel,
		"table":      table,
	}

	pages := make(map[string]*template.Template, len(pageFiles)+1)
	for _, name := range pageFiles {
		t, err := template.New(name).Funcs(funcs).ParseFS(appweb.TemplatesFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	t, err := template.New("category_options.html").Funcs(funcs).ParseFS(appweb.TemplatesFS,
		"templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse template partials: %w", err)
	}
	pages["category_options.html"] = t
	return pages, nil
}

// render executes the named template into a buffer first, so a template
// failure never leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page, name string, data any) {
	t, ok := s.pages[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Template not loaded", "template", page)
		http.Error(w, "template not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", page,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// requireSameOrigin rejects posts whose Origin names another host.
func (s *Server) requireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !sameOrigin(r) {
			s.logger.WarnContext(r.Context(), "Cross-origin post rejected",
				log.FieldPath, r.URL.Path,
				"origin", r.Header.Get("Origin"))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Metrics exposes the request counters.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.GetMetrics()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
