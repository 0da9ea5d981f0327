package http

import (
	"bytes"
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const errorMessage = "Internal Server Error - check server logs."

var pageNames = []string{
	"index.html",
	"welcome.html",
	"quiz.html",
	"result.html",
	"winner_board.html",
	"admin_login.html",
	"admin_dashboard.html",
	"quiz_form.html",
	"edit_question.html",
	"not_found.html",
	"error.html",
}

var templateFuncs = template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04:05")
	},
	"inc": func(i int) int { return i + 1 },
}

func parsePages() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return pages
}

type pageData struct {
	Flashes []flashView
	Admin   bool
	Data    any
}

type flashView struct {
	Category string
	Message  string
}

// render consumes pending flashes and writes the page wrapped in the layout.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *requestSession, status int, page string, data any) {
	view := pageData{Data: data}
	if sess != nil {
		view.Admin = sess.AdminLoggedIn
		if flashes := sess.PopFlashes(); len(flashes) > 0 {
			for _, f := range flashes {
				view.Flashes = append(view.Flashes, flashView{Category: f.Category, Message: f.Message})
			}
			if err := h.sessions.Save(r.Context(), w, sess); err != nil {
				log.Printf("save session after flashes: %v", err)
			}
		}
	}

	tmpl, ok := h.pages[page]
	if !ok {
		log.Printf("unknown page %q", page)
		http.Error(w, errorMessage, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		log.Printf("render %s: %v", page, err)
		http.Error(w, errorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, nil, http.StatusInternalServerError, "error.html", errorMessage)
}

func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, nil, http.StatusNotFound, "not_found.html", nil)
}
