package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type quiz struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Title           string    `bun:"title,notnull"`
	TimePerQuestion int       `bun:"time_per_question,notnull,default:20"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

type question struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int64   `bun:"id,pk,autoincrement"`
	QuizID        int64   `bun:"quiz_id,notnull"`
	Text          string  `bun:"text,notnull"`
	OptionA       string  `bun:"option_a,notnull"`
	OptionB       string  `bun:"option_b,notnull"`
	OptionC       *string `bun:"option_c"`
	OptionD       *string `bun:"option_d"`
	CorrectOption string  `bun:"correct_option,notnull"`
}

type result struct {
	bun.BaseModel `bun:"table:results"`

	ID          int64     `bun:"id,pk,autoincrement"`
	QuizID      int64     `bun:"quiz_id,notnull"`
	Username    string    `bun:"username,notnull"`
	Score       int       `bun:"score,notnull"`
	Total       int       `bun:"total,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

// appState is a single row holding the active quiz reference.
type appState struct {
	bun.BaseModel `bun:"table:app_state"`

	ID           int64  `bun:"id,pk"`
	ActiveQuizID *int64 `bun:"active_quiz_id"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.NewCreateTable().Model((*quiz)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*question)(nil)).IfNotExists().
				ForeignKey(`("quiz_id") REFERENCES "quizzes" ("id") ON DELETE CASCADE`).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*result)(nil)).IfNotExists().
				ForeignKey(`("quiz_id") REFERENCES "quizzes" ("id") ON DELETE CASCADE`).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*appState)(nil)).IfNotExists().
				ForeignKey(`("active_quiz_id") REFERENCES "quizzes" ("id") ON DELETE SET NULL`).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateIndex().Model((*question)(nil)).IfNotExists().
				Index("questions_quiz_id_idx").Column("quiz_id").
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateIndex().Model((*result)(nil)).IfNotExists().
				Index("results_quiz_rank_idx").Column("quiz_id", "score", "submitted_at").
				Exec(ctx); err != nil {
				return err
			}
			_, err := db.NewInsert().Model(&appState{ID: 1}).Ignore().Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range []interface{}{(*appState)(nil), (*result)(nil), (*question)(nil), (*quiz)(nil)} {
				if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
