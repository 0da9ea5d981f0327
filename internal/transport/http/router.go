package http

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
)

// NewRouter wires every page, the admin area and the live feed.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverer)
	r.NotFoundHandler = http.HandlerFunc(h.renderNotFound)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.FileServer(http.FS(staticFS)))

	r.HandleFunc("/", h.withSession(h.home)).Methods(http.MethodGet)
	r.HandleFunc("/welcome", h.withSession(h.welcome)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/quiz", h.withSession(h.quiz)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/result", h.withSession(h.result)).Methods(http.MethodGet)
	r.HandleFunc("/winner-board", h.withSession(h.winnerBoard)).Methods(http.MethodGet)
	r.HandleFunc("/winner-board/live", h.ServeLeaderboard).Methods(http.MethodGet)

	r.HandleFunc("/admin", h.withSession(h.adminLogin)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/admin/logout", h.withSession(h.adminLogout)).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/dashboard", h.requireAdmin(h.dashboard)).Methods(http.MethodGet)
	admin.HandleFunc("/create-quiz", h.requireAdmin(h.createQuiz)).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/set-active/{quiz_id:[0-9]+}", h.requireAdmin(h.setActive)).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/delete-quiz/{quiz_id:[0-9]+}", h.requireAdmin(h.deleteQuiz)).Methods(http.MethodPost)
	admin.HandleFunc("/quiz/{quiz_id:[0-9]+}/add-question", h.requireAdmin(h.addQuestion)).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/question/{q_id:[0-9]+}/edit", h.requireAdmin(h.editQuestion)).Methods(http.MethodGet, http.MethodPost)
	admin.HandleFunc("/question/{q_id:[0-9]+}/delete", h.requireAdmin(h.deleteQuestion)).Methods(http.MethodPost)
	admin.HandleFunc("/clear-results/{quiz_id:[0-9]+}", h.requireAdmin(h.clearResults)).Methods(http.MethodPost)

	return r
}

// recoverer logs the panic with its stack and shows the generic error page.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				h.renderError(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
