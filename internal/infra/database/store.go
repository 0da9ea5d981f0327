package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"quizhost/internal/domain"
)

// Store persists quizzes, questions and results with bun.
// The active quiz is a single reference in app_state, never a per-row flag.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateActiveQuiz inserts a quiz and points the active reference at it in one transaction.
func (s *Store) CreateActiveQuiz(ctx context.Context, title string, timePerQuestion int, createdAt time.Time) (domain.Quiz, error) {
	row := quizRow{Title: title, TimePerQuestion: timePerQuestion, CreatedAt: createdAt}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		return activate(ctx, tx, row.ID)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return row.toDomain(row.ID), nil
}

// ActivateQuiz moves the active reference to quizID and clears its results.
func (s *Store) ActivateQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var row quizRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx); err != nil {
			return mapNotFound(err, domain.ErrQuizNotFound)
		}
		return activate(ctx, tx, row.ID)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return row.toDomain(row.ID), nil
}

func activate(ctx context.Context, tx bun.Tx, quizID int64) error {
	res, err := tx.NewUpdate().Model((*stateRow)(nil)).
		Set("active_quiz_id = ?", quizID).
		Where("id = ?", stateRowID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set active quiz: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		state := stateRow{ID: stateRowID, ActiveQuizID: &quizID}
		if _, err := tx.NewInsert().Model(&state).Exec(ctx); err != nil {
			return fmt.Errorf("insert app state: %w", err)
		}
	}
	if _, err := tx.NewDelete().Model((*resultRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}

// DeleteQuiz removes the quiz, its questions and its results.
func (s *Store) DeleteQuiz(ctx context.Context, quizID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*quizRow)(nil)).Where("id = ?", quizID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("lookup quiz: %w", err)
		}
		if !exists {
			return domain.ErrQuizNotFound
		}
		if _, err := tx.NewUpdate().Model((*stateRow)(nil)).
			Set("active_quiz_id = NULL").
			Where("active_quiz_id = ?", quizID).
			Exec(ctx); err != nil {
			return fmt.Errorf("unset active quiz: %w", err)
		}
		// the foreign keys cascade too; explicit deletes also cover sqlite opened without foreign_keys
		if _, err := tx.NewDelete().Model((*resultRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*quizRow)(nil)).Where("id = ?", quizID).Exec(ctx); err != nil {
			return fmt.Errorf("delete quiz: %w", err)
		}
		return nil
	})
}

func (s *Store) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var row quizRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx); err != nil {
		return domain.Quiz{}, mapNotFound(err, domain.ErrQuizNotFound)
	}
	activeID, err := s.activeQuizID(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	return row.toDomain(activeID), nil
}

// ActiveQuiz returns the quiz the active reference points at, if any.
func (s *Store) ActiveQuiz(ctx context.Context) (domain.Quiz, bool, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).
		Join("JOIN app_state AS s ON s.active_quiz_id = q.id").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, false, nil
	}
	if err != nil {
		return domain.Quiz{}, false, fmt.Errorf("load active quiz: %w", err)
	}
	return row.toDomain(row.ID), true, nil
}

// ListQuizzes returns every quiz, most recently created first.
func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	activeID, err := s.activeQuizID(ctx)
	if err != nil {
		return nil, err
	}
	quizzes := make([]domain.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.toDomain(activeID))
	}
	return quizzes, nil
}

func (s *Store) activeQuizID(ctx context.Context) (int64, error) {
	var state stateRow
	err := s.db.NewSelect().Model(&state).Where("id = ?", stateRowID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load app state: %w", err)
	}
	if state.ActiveQuizID == nil {
		return 0, nil
	}
	return *state.ActiveQuizID, nil
}

func (s *Store) AddQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	row := questionFromDomain(question)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	var row questionRow
	if err := s.db.NewSelect().Model(&row).Where("id = ?", questionID).Scan(ctx); err != nil {
		return domain.Question{}, mapNotFound(err, domain.ErrQuestionNotFound)
	}
	return row.toDomain(), nil
}

// UpdateQuestion writes the supplied fields only. Blank optional options become NULL.
func (s *Store) UpdateQuestion(ctx context.Context, questionID int64, patch domain.QuestionPatch) (domain.Question, error) {
	var row questionRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&row).Where("id = ?", questionID).Scan(ctx); err != nil {
			return mapNotFound(err, domain.ErrQuestionNotFound)
		}
		applyPatch(&row, patch)
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return row.toDomain(), nil
}

func applyPatch(row *questionRow, patch domain.QuestionPatch) {
	if patch.Text != nil {
		row.Text = *patch.Text
	}
	if patch.OptionA != nil {
		row.OptionA = *patch.OptionA
	}
	if patch.OptionB != nil {
		row.OptionB = *patch.OptionB
	}
	if patch.OptionC != nil {
		row.OptionC = nullIfBlank(*patch.OptionC)
	}
	if patch.OptionD != nil {
		row.OptionD = nullIfBlank(*patch.OptionD)
	}
	if patch.CorrectOption != nil {
		row.CorrectOption = *patch.CorrectOption
	}
}

func (s *Store) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := s.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", questionID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// ListQuestions returns a quiz's questions in insertion order.
func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Where("quiz_id = ?", quizID).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toDomain())
	}
	return questions, nil
}

func (s *Store) RecordResult(ctx context.Context, result domain.Result) (domain.Result, error) {
	row := resultRow{
		QuizID:      result.QuizID,
		Username:    result.Username,
		Score:       result.Score,
		Total:       result.Total,
		SubmittedAt: result.Timestamp.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Result{}, fmt.Errorf("insert result: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ClearResults(ctx context.Context, quizID int64) error {
	if _, err := s.db.NewDelete().Model((*resultRow)(nil)).Where("quiz_id = ?", quizID).Exec(ctx); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}

// TopResults orders by score descending, then earliest submission.
func (s *Store) TopResults(ctx context.Context, quizID int64, limit int) ([]domain.Result, error) {
	var rows []resultRow
	err := s.db.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("score DESC", "submitted_at ASC", "id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("top results: %w", err)
	}
	results := make([]domain.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}
	return results, nil
}

// LatestResult returns the highest-id result for username on quizID.
func (s *Store) LatestResult(ctx context.Context, username string, quizID int64) (domain.Result, bool, error) {
	var row resultRow
	err := s.db.NewSelect().Model(&row).
		Where("username = ?", username).
		Where("quiz_id = ?", quizID).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, false, nil
	}
	if err != nil {
		return domain.Result{}, false, fmt.Errorf("latest result: %w", err)
	}
	return row.toDomain(), true, nil
}

func mapNotFound(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func nullIfBlank(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
