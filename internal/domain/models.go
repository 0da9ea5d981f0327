package domain

import "time"

// DefaultTimePerQuestion is the advisory per-question countdown in seconds.
const DefaultTimePerQuestion = 20

// LeaderboardSize is how many results the winner board shows.
const LeaderboardSize = 10

// Quiz is a set of multiple-choice questions. At most one quiz is active.
type Quiz struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	TimePerQuestion int       `json:"timePerQuestion"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Question is owned by exactly one quiz. OptionC and OptionD are optional.
type Question struct {
	ID            int64   `json:"id"`
	QuizID        int64   `json:"quizId"`
	Text          string  `json:"text"`
	OptionA       string  `json:"optionA"`
	OptionB       string  `json:"optionB"`
	OptionC       *string `json:"optionC,omitempty"`
	OptionD       *string `json:"optionD,omitempty"`
	CorrectOption string  `json:"correctOption"`
}

// QuestionView is the student-facing shape of a question; it never carries the answer.
type QuestionView struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c,omitempty"`
	OptionD string `json:"option_d,omitempty"`
}

// View strips the correct option.
func (q Question) View() QuestionView {
	v := QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
	}
	if q.OptionC != nil {
		v.OptionC = *q.OptionC
	}
	if q.OptionD != nil {
		v.OptionD = *q.OptionD
	}
	return v
}

// QuestionInput carries the admin form for a new question, already trimmed.
type QuestionInput struct {
	Text          string `validate:"required"`
	OptionA       string `validate:"required"`
	OptionB       string `validate:"required"`
	OptionC       string
	OptionD       string
	CorrectOption string `validate:"required"`
}

// QuestionPatch holds only the fields supplied by an edit; nil means unchanged.
type QuestionPatch struct {
	Text          *string
	OptionA       *string
	OptionB       *string
	OptionC       *string
	OptionD       *string
	CorrectOption *string
}

// Result is one scored submission.
type Result struct {
	ID        int64     `json:"id"`
	QuizID    int64     `json:"quizId"`
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// ActiveQuiz is a snapshot of the active quiz and its questions.
type ActiveQuiz struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// Leaderboard captures the ranked results for a quiz.
type Leaderboard struct {
	QuizID    int64     `json:"quizId"`
	Entries   []Result  `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the per-browser state. Username and QuizID are the student's claim,
// captured at join time; AdminLoggedIn is the admin gate flag.
type Session struct {
	Username      string  `json:"username,omitempty"`
	QuizID        int64   `json:"quizId,omitempty"`
	AdminLoggedIn bool    `json:"adminLoggedIn,omitempty"`
	Flashes       []Flash `json:"flashes,omitempty"`
}

// Empty reports whether the session carries no identity, admin flag or flashes.
func (s *Session) Empty() bool {
	return s.Username == "" && s.QuizID == 0 && !s.AdminLoggedIn && len(s.Flashes) == 0
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns and clears queued messages.
func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}
