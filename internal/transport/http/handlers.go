package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"quizhost/internal/app"
	"quizhost/internal/domain"
)

const (
	msgNoActiveQuiz  = "No active quiz right now. Please contact admin."
	msgEnterName     = "Enter a name to continue."
	msgNotJoined     = "Please enter name and start the active quiz."
	msgNoQuestions   = "No questions available in the active quiz. Please contact admin."
	msgInternal      = "An internal error occurred. Check server logs."
	msgNoActiveBoard = "No active quiz currently."
	msgBadPassword   = "Incorrect password"
	msgQuizCreated   = "Quiz created and set active."
	msgQuizDeleted   = "Quiz deleted."
	msgQuestionReq   = "Question, option A, option B and correct option are required."
	msgQuestionAdded = "Question added."
	msgQuestionSaved = "Question updated."
	msgQuestionGone  = "Question deleted."
	msgResultsClear  = "Results cleared for this quiz."
)

// Handler serves the student pages, the admin pages and the live winner board.
type Handler struct {
	service       *app.QuizService
	sessions      *SessionManager
	adminPassword string
	pages         map[string]*template.Template
	upgrader      websocket.Upgrader
}

func NewHandler(service *app.QuizService, sessions *SessionManager, adminPassword string) *Handler {
	return &Handler{
		service:       service,
		sessions:      sessions,
		adminPassword: adminPassword,
		pages:         parsePages(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// sessionHandler receives the caller's session explicitly.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *requestSession)

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Load(r)
		if err != nil {
			log.Printf("load session: %v", err)
			h.renderError(w, r)
			return
		}
		next(w, r, sess)
	}
}

// requireAdmin fails closed: without the admin flag every request goes back to the login form.
func (h *Handler) requireAdmin(next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, sess *requestSession) {
		if !sess.AdminLoggedIn {
			http.Redirect(w, r, "/admin", http.StatusFound)
			return
		}
		next(w, r, sess)
	})
}

// redirect saves the session (flashes included) before leaving the page.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sess *requestSession, to string) {
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		log.Printf("save session: %v", err)
	}
	http.Redirect(w, r, to, http.StatusFound)
}

func (h *Handler) flashRedirect(w http.ResponseWriter, r *http.Request, sess *requestSession, category, message, to string) {
	sess.AddFlash(category, message)
	h.redirect(w, r, sess, to)
}

// fail maps NotFound to the 404 page and everything else to the generic error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsNotFound(err) {
		h.renderNotFound(w, r)
		return
	}
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	h.renderError(w, r)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	active, err := h.service.Active(r.Context())
	if err != nil && !errors.Is(err, domain.ErrNoActiveQuiz) {
		h.fail(w, r, err)
		return
	}
	var quiz *domain.Quiz
	if err == nil {
		quiz = &active.Quiz
	}
	h.render(w, r, sess, http.StatusOK, "index.html", quiz)
}

func (h *Handler) welcome(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	active, err := h.service.Active(r.Context())
	if errors.Is(err, domain.ErrNoActiveQuiz) {
		h.flashRedirect(w, r, sess, "warning", msgNoActiveQuiz, "/")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.Method == http.MethodPost {
		id, err := app.JoinIdentity(active.Quiz, r.PostFormValue("username"))
		if err != nil {
			h.flashRedirect(w, r, sess, "warning", msgEnterName, "/welcome")
			return
		}
		id.Apply(&sess.Session)
		h.redirect(w, r, sess, "/quiz")
		return
	}
	h.render(w, r, sess, http.StatusOK, "welcome.html", active.Quiz)
}

type quizPage struct {
	Quiz      domain.Quiz
	Questions []domain.QuestionView
}

type submitResponse struct {
	Status string `json:"status"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}

func (h *Handler) quiz(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	id := app.IdentityFrom(sess.Session)
	active, err := h.service.Play(r.Context(), id)
	if err != nil {
		h.quizFailure(w, r, sess, err)
		return
	}

	if r.Method == http.MethodPost {
		answers, err := decodeAnswers(r.Body)
		if err != nil {
			h.quizFailure(w, r, sess, fmt.Errorf("decode answers: %w", err))
			return
		}
		result, err := h.service.Submit(r.Context(), id, answers)
		if err != nil {
			h.quizFailure(w, r, sess, err)
			return
		}
		writeJSON(w, http.StatusOK, submitResponse{Status: "ok", Score: result.Score, Total: result.Total})
		return
	}

	views := make([]domain.QuestionView, 0, len(active.Questions))
	for _, q := range active.Questions {
		views = append(views, q.View())
	}
	h.render(w, r, sess, http.StatusOK, "quiz.html", quizPage{Quiz: active.Quiz, Questions: views})
}

func (h *Handler) quizFailure(w http.ResponseWriter, r *http.Request, sess *requestSession, err error) {
	switch {
	case errors.Is(err, domain.ErrNoActiveQuiz), errors.Is(err, domain.ErrNotJoined):
		h.flashRedirect(w, r, sess, "warning", msgNotJoined, "/")
	case errors.Is(err, domain.ErrNoQuestions):
		h.flashRedirect(w, r, sess, "warning", msgNoQuestions, "/")
	default:
		log.Printf("quiz %s: %v", r.Method, err)
		h.flashRedirect(w, r, sess, "error", msgInternal, "/")
	}
}

// decodeAnswers reads a JSON object of question id to option. An empty or null
// body means no answers; non-string selections are dropped and score as wrong.
func decodeAnswers(body io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil, err
	}
	answers := map[string]string{}
	if len(data) == 0 {
		return answers, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			answers[k] = s
		}
	}
	return answers, nil
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	id := app.IdentityFrom(sess.Session)
	if !id.Joined() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	res, ok, err := h.service.LatestResult(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var data *domain.Result
	if ok {
		data = &res
	}
	h.render(w, r, sess, http.StatusOK, "result.html", data)
}

type boardPage struct {
	Quiz  domain.Quiz
	Board domain.Leaderboard
}

func (h *Handler) winnerBoard(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quiz, lb, err := h.service.Leaderboard(r.Context())
	if errors.Is(err, domain.ErrNoActiveQuiz) {
		h.flashRedirect(w, r, sess, "warning", msgNoActiveBoard, "/")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, sess, http.StatusOK, "winner_board.html", boardPage{Quiz: quiz, Board: lb})
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	if sess.AdminLoggedIn {
		http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
		return
	}
	var loginErr string
	if r.Method == http.MethodPost {
		if app.CheckAdminPassword(h.adminPassword, r.PostFormValue("password")) {
			sess.AdminLoggedIn = true
			h.redirect(w, r, sess, "/admin/dashboard")
			return
		}
		log.Printf("admin login rejected from %s", r.RemoteAddr)
		loginErr = msgBadPassword
	}
	h.render(w, r, sess, http.StatusOK, "admin_login.html", loginErr)
}

func (h *Handler) adminLogout(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	if sess.isNew {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	sess.AdminLoggedIn = false
	if !sess.Empty() {
		h.redirect(w, r, sess, "/")
		return
	}
	if err := h.sessions.Destroy(r.Context(), w, sess); err != nil {
		log.Printf("destroy session: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

type dashboardQuiz struct {
	Quiz      domain.Quiz
	Questions []domain.Question
}

type dashboardPage struct {
	Active  *domain.Quiz
	Quizzes []dashboardQuiz
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := dashboardPage{Quizzes: make([]dashboardQuiz, 0, len(quizzes))}
	for i, q := range quizzes {
		questions, err := h.service.Questions(r.Context(), q.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if q.Active {
			page.Active = &quizzes[i]
		}
		page.Quizzes = append(page.Quizzes, dashboardQuiz{Quiz: q, Questions: questions})
	}
	h.render(w, r, sess, http.StatusOK, "admin_dashboard.html", page)
}

type quizFormPage struct {
	CreateQuiz bool
	Quiz       domain.Quiz
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	if r.Method == http.MethodPost {
		if _, err := h.service.CreateQuiz(r.Context(), r.PostFormValue("title"), r.PostFormValue("time_per_question")); err != nil {
			h.fail(w, r, err)
			return
		}
		h.flashRedirect(w, r, sess, "success", msgQuizCreated, "/admin/dashboard")
		return
	}
	h.render(w, r, sess, http.StatusOK, "quiz_form.html", quizFormPage{CreateQuiz: true})
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quizID, ok := pathID(r, "quiz_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	quiz, err := h.service.Activate(r.Context(), quizID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.flashRedirect(w, r, sess, "success", fmt.Sprintf("Quiz '%s' is now active (results cleared).", quiz.Title), "/admin/dashboard")
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quizID, ok := pathID(r, "quiz_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	if err := h.service.DeleteQuiz(r.Context(), quizID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.flashRedirect(w, r, sess, "info", msgQuizDeleted, "/admin/dashboard")
}

func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quizID, ok := pathID(r, "quiz_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	quiz, err := h.service.GetQuiz(r.Context(), quizID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.Method == http.MethodPost {
		_, err := h.service.AddQuestion(r.Context(), quiz.ID, domain.QuestionInput{
			Text:          r.PostFormValue("text"),
			OptionA:       r.PostFormValue("option_a"),
			OptionB:       r.PostFormValue("option_b"),
			OptionC:       r.PostFormValue("option_c"),
			OptionD:       r.PostFormValue("option_d"),
			CorrectOption: r.PostFormValue("correct_option"),
		})
		if errors.Is(err, domain.ErrInvalidQuestion) {
			h.flashRedirect(w, r, sess, "warning", msgQuestionReq, fmt.Sprintf("/admin/quiz/%d/add-question", quiz.ID))
			return
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.flashRedirect(w, r, sess, "success", msgQuestionAdded, "/admin/dashboard")
		return
	}
	h.render(w, r, sess, http.StatusOK, "quiz_form.html", quizFormPage{Quiz: quiz})
}

func (h *Handler) editQuestion(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	questionID, ok := pathID(r, "q_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.fail(w, r, err)
			return
		}
		patch := domain.QuestionPatch{
			Text:          formField(r, "text"),
			OptionA:       formField(r, "option_a"),
			OptionB:       formField(r, "option_b"),
			OptionC:       formField(r, "option_c"),
			OptionD:       formField(r, "option_d"),
			CorrectOption: formField(r, "correct_option"),
		}
		if _, err := h.service.EditQuestion(r.Context(), questionID, patch); err != nil {
			h.fail(w, r, err)
			return
		}
		h.flashRedirect(w, r, sess, "success", msgQuestionSaved, "/admin/dashboard")
		return
	}

	question, err := h.service.GetQuestion(r.Context(), questionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, sess, http.StatusOK, "edit_question.html", question)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	questionID, ok := pathID(r, "q_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	if err := h.service.DeleteQuestion(r.Context(), questionID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.flashRedirect(w, r, sess, "info", msgQuestionGone, "/admin/dashboard")
}

func (h *Handler) clearResults(w http.ResponseWriter, r *http.Request, sess *requestSession) {
	quizID, ok := pathID(r, "quiz_id")
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	if err := h.service.ClearResults(r.Context(), quizID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.flashRedirect(w, r, sess, "info", msgResultsClear, "/admin/dashboard")
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formField distinguishes an absent field (nil) from one submitted blank.
func formField(r *http.Request, name string) *string {
	values, ok := r.PostForm[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}
