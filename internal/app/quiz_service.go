package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"quizhost/internal/domain"
)

// QuizRepository persists quizzes and the active-quiz reference.
type QuizRepository interface {
	CreateActiveQuiz(ctx context.Context, title string, timePerQuestion int, createdAt time.Time) (domain.Quiz, error)
	ActivateQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	ActiveQuiz(ctx context.Context) (domain.Quiz, bool, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuestionRepository persists questions owned by a quiz.
type QuestionRepository interface {
	AddQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	GetQuestion(ctx context.Context, questionID int64) (domain.Question, error)
	UpdateQuestion(ctx context.Context, questionID int64, patch domain.QuestionPatch) (domain.Question, error)
	DeleteQuestion(ctx context.Context, questionID int64) error
	ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// ResultRepository persists scored submissions.
type ResultRepository interface {
	RecordResult(ctx context.Context, result domain.Result) (domain.Result, error)
	ClearResults(ctx context.Context, quizID int64) error
	TopResults(ctx context.Context, quizID int64, limit int) ([]domain.Result, error)
	LatestResult(ctx context.Context, username string, quizID int64) (domain.Result, bool, error)
}

// Store is the full persistence surface the service needs.
type Store interface {
	QuizRepository
	QuestionRepository
	ResultRepository
}

// ActiveQuizCache holds a snapshot of the active quiz (in-memory, Redis, etc).
// Implementations must not cache a failed load.
type ActiveQuizCache interface {
	GetActive(ctx context.Context, load func(context.Context) (domain.ActiveQuiz, error)) (domain.ActiveQuiz, error)
	Invalidate(ctx context.Context) error
}

// QuizService contains the quiz lifecycle, scoring and leaderboard use cases.
type QuizService struct {
	store    Store
	cache    ActiveQuizCache
	feed     *LeaderboardFeed
	validate *validator.Validate
	now      func() time.Time
}

func NewQuizService(store Store, cache ActiveQuizCache, feed *LeaderboardFeed) *QuizService {
	return NewQuizServiceWithClock(store, cache, feed, time.Now)
}

// NewQuizServiceWithClock is used by tests for deterministic timestamps.
func NewQuizServiceWithClock(store Store, cache ActiveQuizCache, feed *LeaderboardFeed, now func() time.Time) *QuizService {
	if feed == nil {
		feed = NewLeaderboardFeed()
	}
	return &QuizService{
		store:    store,
		cache:    cache,
		feed:     feed,
		validate: validator.New(),
		now:      now,
	}
}

// CreateQuiz inserts a new quiz and makes it the only active one.
// A blank title falls back to a timestamp; a missing or malformed time falls back to the default.
func (s *QuizService) CreateQuiz(ctx context.Context, title, rawTimePerQuestion string) (domain.Quiz, error) {
	now := s.now().UTC()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Quiz " + now.Format("2006-01-02T15:04:05.000000")
	}

	quiz, err := s.store.CreateActiveQuiz(ctx, title, ParseTimePerQuestion(rawTimePerQuestion), now)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.invalidate(ctx)
	s.publish(ctx, quiz.ID)
	log.Printf("quiz %d %q created and activated", quiz.ID, quiz.Title)
	return quiz, nil
}

// ParseTimePerQuestion returns the advisory seconds per question. Only a missing or
// non-integer value falls back to the default; any parsed integer is kept as given.
func ParseTimePerQuestion(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.DefaultTimePerQuestion
	}
	return n
}

// Activate transfers activation to quizID and clears its previous results.
func (s *QuizService) Activate(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, err := s.store.ActivateQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.invalidate(ctx)
	s.publish(ctx, quiz.ID)
	log.Printf("quiz %d activated, results cleared", quiz.ID)
	return quiz, nil
}

// DeleteQuiz removes a quiz together with its questions and results.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID int64) error {
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.invalidate(ctx)
	log.Printf("quiz %d deleted", quizID)
	return nil
}

// Active returns the active quiz snapshot, or domain.ErrNoActiveQuiz.
func (s *QuizService) Active(ctx context.Context) (domain.ActiveQuiz, error) {
	return s.cache.GetActive(ctx, s.loadActive)
}

func (s *QuizService) loadActive(ctx context.Context) (domain.ActiveQuiz, error) {
	quiz, ok, err := s.store.ActiveQuiz(ctx)
	if err != nil {
		return domain.ActiveQuiz{}, err
	}
	if !ok {
		return domain.ActiveQuiz{}, domain.ErrNoActiveQuiz
	}
	questions, err := s.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return domain.ActiveQuiz{}, err
	}
	return domain.ActiveQuiz{Quiz: quiz, Questions: questions}, nil
}

// ListQuizzes returns all quizzes, newest first.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx)
}

func (s *QuizService) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.store.GetQuiz(ctx, quizID)
}

func (s *QuizService) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx, quizID)
}

// AddQuestion validates and stores a question. Blank optional options become absent.
// The correct option is not checked against the populated options.
func (s *QuizService) AddQuestion(ctx context.Context, quizID int64, in domain.QuestionInput) (domain.Question, error) {
	in = domain.QuestionInput{
		Text:          strings.TrimSpace(in.Text),
		OptionA:       strings.TrimSpace(in.OptionA),
		OptionB:       strings.TrimSpace(in.OptionB),
		OptionC:       strings.TrimSpace(in.OptionC),
		OptionD:       strings.TrimSpace(in.OptionD),
		CorrectOption: strings.TrimSpace(in.CorrectOption),
	}
	if err := s.validate.Struct(in); err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return domain.Question{}, err
	}

	question, err := s.store.AddQuestion(ctx, domain.Question{
		QuizID:        quizID,
		Text:          in.Text,
		OptionA:       in.OptionA,
		OptionB:       in.OptionB,
		OptionC:       optional(in.OptionC),
		OptionD:       optional(in.OptionD),
		CorrectOption: in.CorrectOption,
	})
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx)
	return question, nil
}

func (s *QuizService) GetQuestion(ctx context.Context, questionID int64) (domain.Question, error) {
	return s.store.GetQuestion(ctx, questionID)
}

// EditQuestion applies only the supplied fields. Required fields are not re-validated.
func (s *QuizService) EditQuestion(ctx context.Context, questionID int64, patch domain.QuestionPatch) (domain.Question, error) {
	question, err := s.store.UpdateQuestion(ctx, questionID, patch)
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx)
	return question, nil
}

func (s *QuizService) DeleteQuestion(ctx context.Context, questionID int64) error {
	if err := s.store.DeleteQuestion(ctx, questionID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Join binds a display name to the currently active quiz.
func (s *QuizService) Join(ctx context.Context, name string) (Identity, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return Identity{}, err
	}
	return JoinIdentity(active.Quiz, name)
}

// Play returns the active quiz for an identity that passed the entry gate.
func (s *QuizService) Play(ctx context.Context, id Identity) (domain.ActiveQuiz, error) {
	active, err := s.Active(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoActiveQuiz) {
		return domain.ActiveQuiz{}, err
	}
	var current *domain.Quiz
	if err == nil {
		current = &active.Quiz
	}
	if err := CheckEntry(id, current); err != nil {
		return domain.ActiveQuiz{}, err
	}
	if len(active.Questions) == 0 {
		return domain.ActiveQuiz{}, domain.ErrNoQuestions
	}
	return active, nil
}

// Submit scores answers against every question of the active quiz and records
// exactly one result. Repeated submissions record repeated results.
func (s *QuizService) Submit(ctx context.Context, id Identity, answers map[string]string) (domain.Result, error) {
	active, err := s.Play(ctx, id)
	if err != nil {
		return domain.Result{}, err
	}

	score, total := Score(active.Questions, answers)
	result, err := s.store.RecordResult(ctx, domain.Result{
		QuizID:    active.Quiz.ID,
		Username:  id.Username,
		Score:     score,
		Total:     total,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("record result: %w", err)
	}
	s.publish(ctx, active.Quiz.ID)
	return result, nil
}

// Top ranks results for a quiz: score descending, earlier submission first.
func (s *QuizService) Top(ctx context.Context, quizID int64, limit int) ([]domain.Result, error) {
	if limit <= 0 {
		limit = domain.LeaderboardSize
	}
	return s.store.TopResults(ctx, quizID, limit)
}

// Leaderboard returns the top results of the active quiz.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Quiz, domain.Leaderboard, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return domain.Quiz{}, domain.Leaderboard{}, err
	}
	lb, err := s.leaderboard(ctx, active.Quiz.ID)
	return active.Quiz, lb, err
}

func (s *QuizService) leaderboard(ctx context.Context, quizID int64) (domain.Leaderboard, error) {
	entries, err := s.Top(ctx, quizID, domain.LeaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.now().UTC()}, nil
}

// LatestResult returns the most recently recorded result for the identity's name and quiz.
// Names are not unique, so another student with the same name can shadow it.
func (s *QuizService) LatestResult(ctx context.Context, id Identity) (domain.Result, bool, error) {
	return s.store.LatestResult(ctx, id.Username, id.QuizID)
}

// ClearResults deletes every result for a quiz.
func (s *QuizService) ClearResults(ctx context.Context, quizID int64) error {
	if err := s.store.ClearResults(ctx, quizID); err != nil {
		return err
	}
	s.publish(ctx, quizID)
	return nil
}

// Subscribe returns a channel of leaderboard updates for the active quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	_, lb, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(lb)
	return ch, cancel, nil
}

func (s *QuizService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("invalidate active quiz cache: %v", err)
	}
}

func (s *QuizService) publish(ctx context.Context, quizID int64) {
	if !s.feed.HasSubscribers(quizID) {
		return
	}
	lb, err := s.leaderboard(ctx, quizID)
	if err != nil {
		log.Printf("leaderboard for quiz %d: %v", quizID, err)
		return
	}
	s.feed.Publish(lb)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
