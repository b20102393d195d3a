package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/signalwatch/signalwatch/internal/analyze"
	"github.com/signalwatch/signalwatch/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP dashboard for browsing analyses, articles and
// subscribers.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatTime": formatEpoch,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "analysis.html", "articles.html", "subscribers.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/analysis/", s.handleAnalysis)
	s.mux.HandleFunc("/articles", s.handleArticles)
	s.mux.HandleFunc("/subscribers", s.handleSubscribers)
	s.mux.HandleFunc("/subscribers/add", s.handleAddSubscriber)
	s.mux.HandleFunc("/subscribers/remove", s.handleRemoveSubscriber)
}

// analysisView is one analysis row prepared for display.
type analysisView struct {
	ID      int64
	Time    string
	Summary string
	Impacts int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	analyses, err := s.db.GetRecentAnalyses(20)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]analysisView, 0, len(analyses))
	for _, a := range analyses {
		v := analysisView{ID: a.ID, Time: formatEpoch(a.CreatedAt)}
		if payload, err := analyze.ParseDocument(a.Content); err == nil {
			v.Summary = payload.Summary
			v.Impacts = len(payload.PotentialImpacts)
		}
		views = append(views, v)
	}

	errs, _ := s.db.GetRecentReasoningErrors(5)

	s.render(w, "index.html", map[string]any{
		"Stats":    stats,
		"Analyses": views,
		"Errors":   errs,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/analysis/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	analysis, err := s.db.GetAnalysis(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if analysis == nil {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{
		"Analysis": analysis,
		"Time":     formatEpoch(analysis.CreatedAt),
	}
	if payload, err := analyze.ParseDocument(analysis.Content); err == nil {
		data["Summary"] = payload.Summary
		data["Impacts"] = payload.PotentialImpacts
	}

	s.render(w, "analysis.html", data)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.db.GetRecentArticles(50)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "articles.html", map[string]any{
		"Articles": articles,
	})
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := s.db.GetSubscribers()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "subscribers.html", map[string]any{
		"Subscribers": subscribers,
	})
}

func (s *Server) handleAddSubscriber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/subscribers", http.StatusFound)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	threshold, err := strconv.Atoi(r.FormValue("threshold"))
	if err != nil {
		threshold = 7
	}
	frequency, err := strconv.Atoi(r.FormValue("frequency_hours"))
	if err != nil {
		frequency = 24
	}

	if email != "" {
		if err := s.db.UpsertSubscriber(email, threshold, frequency); err != nil {
			log.Printf("Adding subscriber %s failed: %v", email, err)
		}
	}

	http.Redirect(w, r, "/subscribers", http.StatusFound)
}

func (s *Server) handleRemoveSubscriber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/subscribers", http.StatusFound)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email != "" {
		if err := s.db.RemoveSubscriber(email); err != nil {
			log.Printf("Removing subscriber %s failed: %v", email, err)
		}
	}

	http.Redirect(w, r, "/subscribers", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func formatEpoch(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04 UTC")
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
