package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"money": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"created": func(c *contact.Contact) string {
		return c.CreatedAt.UTC().Format("2006-01-02")
	},
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Search   string
	Contacts []*contact.Contact
	Stats    store.Stats
	Host     string
}

// handleRoot renders the contact overview.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	contacts, err := s.query.Search(r.Context(), search)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats, err := s.query.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = s.page.ExecuteTemplate(w, "index.html", pageData{
		Search:   search,
		Contacts: contacts,
		Stats:    stats,
		Host:     r.Host,
	})
	if err != nil {
		s.logger.Printf("Failed to render page: %v", err)
	}
}
