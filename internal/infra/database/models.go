package database

import (
	"time"

	"github.com/uptrace/bun"

	"quizhost/internal/domain"
)

const stateRowID = 1

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Title           string    `bun:"title,notnull"`
	TimePerQuestion int       `bun:"time_per_question,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

func (r quizRow) toDomain(activeID int64) domain.Quiz {
	return domain.Quiz{
		ID:              r.ID,
		Title:           r.Title,
		TimePerQuestion: r.TimePerQuestion,
		Active:          activeID != 0 && r.ID == activeID,
		CreatedAt:       r.CreatedAt,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID            int64   `bun:"id,pk,autoincrement"`
	QuizID        int64   `bun:"quiz_id,notnull"`
	Text          string  `bun:"text,notnull"`
	OptionA       string  `bun:"option_a,notnull"`
	OptionB       string  `bun:"option_b,notnull"`
	OptionC       *string `bun:"option_c"`
	OptionD       *string `bun:"option_d"`
	CorrectOption string  `bun:"correct_option,notnull"`
}

func questionFromDomain(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		QuizID:        q.QuizID,
		Text:          q.Text,
		OptionA:       q.OptionA,
		OptionB:       q.OptionB,
		OptionC:       q.OptionC,
		OptionD:       q.OptionD,
		CorrectOption: q.CorrectOption,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Text:          r.Text,
		OptionA:       r.OptionA,
		OptionB:       r.OptionB,
		OptionC:       r.OptionC,
		OptionD:       r.OptionD,
		CorrectOption: r.CorrectOption,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID          int64     `bun:"id,pk,autoincrement"`
	QuizID      int64     `bun:"quiz_id,notnull"`
	Username    string    `bun:"username,notnull"`
	Score       int       `bun:"score,notnull"`
	Total       int       `bun:"total,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

func (r resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:        r.ID,
		QuizID:    r.QuizID,
		Username:  r.Username,
		Score:     r.Score,
		Total:     r.Total,
		Timestamp: r.SubmittedAt,
	}
}

type stateRow struct {
	bun.BaseModel `bun:"table:app_state,alias:s"`

	ID           int64  `bun:"id,pk"`
	ActiveQuizID *int64 `bun:"active_quiz_id"`
}
