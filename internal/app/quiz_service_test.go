package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quizhost/internal/app"
	"quizhost/internal/domain"
	"quizhost/internal/infra/database"
	"quizhost/internal/infra/memory"
)

func TestCreateQuizLeavesExactlyOneActive(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)

	first, err := service.CreateQuiz(ctx, "First", "10")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := service.CreateQuiz(ctx, "Second", "10")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	assertOnlyActive(t, service, second.ID)

	if _, err := service.Activate(ctx, first.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	assertOnlyActive(t, service, first.ID)

	active, err := service.Active(ctx)
	if err != nil || active.Quiz.ID != first.ID {
		t.Fatalf("expected first active, got %+v (%v)", active.Quiz, err)
	}
}

func TestCreateQuizDefaults(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 9, 30, 0, 123456000, time.UTC)
	service := newTestService(t, func() time.Time { return now })

	quiz, err := service.CreateQuiz(ctx, "   ", "soon")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quiz.Title != "Quiz 2026-10-17T09:30:00.123456" {
		t.Fatalf("unexpected default title %q", quiz.Title)
	}
	if quiz.TimePerQuestion != domain.DefaultTimePerQuestion {
		t.Fatalf("expected default time, got %d", quiz.TimePerQuestion)
	}
}

func TestParseTimePerQuestion(t *testing.T) {
	cases := map[string]int{"": 20, "abc": 20, "1.5": 20, "0": 0, "-5": -5, "15": 15, " 30 ": 30}
	for raw, want := range cases {
		if got := app.ParseTimePerQuestion(raw); got != want {
			t.Fatalf("ParseTimePerQuestion(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestActivateClearsResults(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, qs := seedQuiz(t, service, "Math", 2)

	id := join(t, service, "Ada")
	if _, err := service.Submit(ctx, id, map[string]string{app.AnswerKey(qs[0].ID): "A"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if top, _ := service.Top(ctx, quiz.ID, 10); len(top) != 1 {
		t.Fatalf("expected one result before activation, got %d", len(top))
	}

	if _, err := service.Activate(ctx, quiz.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if top, _ := service.Top(ctx, quiz.ID, 10); len(top) != 0 {
		t.Fatalf("expected empty board after activation, got %d", len(top))
	}
}

func TestActivateUnknownQuiz(t *testing.T) {
	service := newTestService(t, time.Now)
	if _, err := service.Activate(context.Background(), 42); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitScoresAgainstEveryQuestion(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	_, qs := seedQuiz(t, service, "Math", 3)
	id := join(t, service, "Ada")

	cases := []struct {
		name    string
		answers map[string]string
		score   int
	}{
		{"none", nil, 0},
		{"partial", map[string]string{app.AnswerKey(qs[0].ID): "A"}, 1},
		{"wrong case", map[string]string{app.AnswerKey(qs[0].ID): "a"}, 0},
		{"all", map[string]string{
			app.AnswerKey(qs[0].ID): "A",
			app.AnswerKey(qs[1].ID): "A",
			app.AnswerKey(qs[2].ID): "A",
			"999":                   "A",
		}, 3},
	}
	for _, tc := range cases {
		res, err := service.Submit(ctx, id, tc.answers)
		if err != nil {
			t.Fatalf("%s: submit: %v", tc.name, err)
		}
		if res.Score != tc.score || res.Total != 3 {
			t.Fatalf("%s: got %d/%d, want %d/3", tc.name, res.Score, res.Total, tc.score)
		}
		if res.Score < 0 || res.Score > res.Total {
			t.Fatalf("%s: score out of bounds %d/%d", tc.name, res.Score, res.Total)
		}
	}
}

func TestDoubleSubmissionRecordsTwice(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, qs := seedQuiz(t, service, "Math", 1)
	id := join(t, service, "Ada")

	answers := map[string]string{app.AnswerKey(qs[0].ID): "A"}
	first, err := service.Submit(ctx, id, answers)
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	second, err := service.Submit(ctx, id, answers)
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected two distinct results")
	}
	top, _ := service.Top(ctx, quiz.ID, 10)
	if len(top) != 2 {
		t.Fatalf("expected both submissions on the board, got %d", len(top))
	}
	latest, ok, err := service.LatestResult(ctx, id)
	if err != nil || !ok || latest.ID != second.ID {
		t.Fatalf("expected latest result to be the second, got %+v ok=%v err=%v", latest, ok, err)
	}
}

func TestLatestResultSharedName(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	_, qs := seedQuiz(t, service, "Math", 1)

	mine := join(t, service, "Sam")
	theirs := join(t, service, "Sam")
	if _, err := service.Submit(ctx, mine, map[string]string{app.AnswerKey(qs[0].ID): "A"}); err != nil {
		t.Fatalf("submit mine: %v", err)
	}
	other, err := service.Submit(ctx, theirs, nil)
	if err != nil {
		t.Fatalf("submit theirs: %v", err)
	}
	// identity is only the claimed name: the newest "Sam" result wins
	got, ok, _ := service.LatestResult(ctx, mine)
	if !ok || got.ID != other.ID {
		t.Fatalf("expected the other Sam's result, got %+v", got)
	}
}

func TestSubmitGate(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)

	if _, err := service.Submit(ctx, app.Identity{Username: "Ada", QuizID: 1}, nil); !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected no active quiz, got %v", err)
	}

	quiz, err := service.CreateQuiz(ctx, "Empty", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := join(t, service, "Ada")
	if _, err := service.Submit(ctx, id, nil); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}

	if _, err := service.AddQuestion(ctx, quiz.ID, domain.QuestionInput{Text: "q", OptionA: "a", OptionB: "b", CorrectOption: "A"}); err != nil {
		t.Fatalf("add question: %v", err)
	}
	if _, err := service.Submit(ctx, app.Identity{Username: "Ada", QuizID: quiz.ID + 1}, nil); !errors.Is(err, domain.ErrNotJoined) {
		t.Fatalf("expected not joined for stale quiz, got %v", err)
	}
	if _, err := service.Submit(ctx, app.Identity{QuizID: quiz.ID}, nil); !errors.Is(err, domain.ErrNotJoined) {
		t.Fatalf("expected not joined without a name, got %v", err)
	}
	if _, err := service.Submit(ctx, id, nil); err != nil {
		t.Fatalf("expected joined identity to submit, got %v", err)
	}
}

func TestAddQuestionRoundTrip(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, err := service.CreateQuiz(ctx, "Geo", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	added, err := service.AddQuestion(ctx, quiz.ID, domain.QuestionInput{
		Text:          "Capital of France?",
		OptionA:       "Paris",
		OptionB:       "Lyon",
		OptionC:       "   ",
		CorrectOption: "A",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := service.GetQuestion(ctx, added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "Capital of France?" || got.OptionA != "Paris" || got.OptionB != "Lyon" || got.CorrectOption != "A" {
		t.Fatalf("unexpected question %+v", got)
	}
	if got.OptionC != nil || got.OptionD != nil {
		t.Fatalf("expected optional options absent, got %v %v", got.OptionC, got.OptionD)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, _ := service.CreateQuiz(ctx, "Geo", "")

	valid := domain.QuestionInput{Text: "q", OptionA: "a", OptionB: "b", CorrectOption: "A"}
	blanks := []func(*domain.QuestionInput){
		func(in *domain.QuestionInput) { in.Text = " " },
		func(in *domain.QuestionInput) { in.OptionA = "" },
		func(in *domain.QuestionInput) { in.OptionB = "\t" },
		func(in *domain.QuestionInput) { in.CorrectOption = "" },
	}
	for i, blank := range blanks {
		in := valid
		blank(&in)
		if _, err := service.AddQuestion(ctx, quiz.ID, in); !errors.Is(err, domain.ErrInvalidQuestion) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if _, err := service.AddQuestion(ctx, quiz.ID+100, valid); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected unknown quiz, got %v", err)
	}
	if qs, _ := service.Questions(ctx, quiz.ID); len(qs) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(qs))
	}
}

func TestEditQuestionDoesNotRevalidate(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	_, qs := seedQuiz(t, service, "Math", 1)

	blank := ""
	edited, err := service.EditQuestion(ctx, qs[0].ID, domain.QuestionPatch{Text: &blank})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Text != "" || edited.OptionA != qs[0].OptionA {
		t.Fatalf("unexpected edit result %+v", edited)
	}
	if _, err := service.EditQuestion(ctx, 9999, domain.QuestionPatch{}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditRefreshesActiveSnapshot(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	_, qs := seedQuiz(t, service, "Math", 1)

	if _, err := service.Active(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	text := "updated"
	if _, err := service.EditQuestion(ctx, qs[0].ID, domain.QuestionPatch{Text: &text}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	active, err := service.Active(ctx)
	if err != nil || active.Questions[0].Text != "updated" {
		t.Fatalf("expected fresh snapshot, got %+v (%v)", active.Questions, err)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, qs := seedQuiz(t, service, "Math", 2)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := service.Submit(ctx, join(t, service, name), nil); err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
	}

	if err := service.DeleteQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.GetQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
	for _, q := range qs {
		if _, err := service.GetQuestion(ctx, q.ID); !errors.Is(err, domain.ErrQuestionNotFound) {
			t.Fatalf("expected question %d gone, got %v", q.ID, err)
		}
	}
	if top, _ := service.Top(ctx, quiz.ID, 10); len(top) != 0 {
		t.Fatalf("expected results gone, got %d", len(top))
	}
	if _, err := service.Active(ctx); !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected no active quiz, got %v", err)
	}
	if err := service.DeleteQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	service := newTestService(t, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	setNow := func(hh, mm int) {
		mu.Lock()
		now = time.Date(2026, 10, 17, hh, mm, 0, 0, time.UTC)
		mu.Unlock()
	}
	quiz, qs := seedQuiz(t, service, "Math", 5)
	answersFor := func(correct int) map[string]string {
		answers := map[string]string{}
		for _, q := range qs[:correct] {
			answers[app.AnswerKey(q.ID)] = "A"
		}
		return answers
	}

	setNow(10, 0)
	if _, err := service.Submit(ctx, join(t, service, "three"), answersFor(3)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	setNow(10, 5)
	if _, err := service.Submit(ctx, join(t, service, "late-five"), answersFor(5)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	setNow(10, 1)
	if _, err := service.Submit(ctx, join(t, service, "early-five"), answersFor(5)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	top, err := service.Top(ctx, quiz.ID, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"early-five", "late-five", "three"}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(top))
	}
	for i, name := range want {
		if top[i].Username != name {
			t.Fatalf("position %d: want %s, got %s", i, name, top[i].Username)
		}
	}

	_, lb, err := service.Leaderboard(ctx)
	if err != nil || len(lb.Entries) != 3 || lb.QuizID != quiz.ID {
		t.Fatalf("unexpected leaderboard %+v (%v)", lb, err)
	}
}

func TestTopLimitsToTen(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, _ := seedQuiz(t, service, "Math", 1)
	for i := 0; i < 12; i++ {
		if _, err := service.Submit(ctx, join(t, service, "s"), nil); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	top, _ := service.Top(ctx, quiz.ID, 0)
	if len(top) != domain.LeaderboardSize {
		t.Fatalf("expected %d entries, got %d", domain.LeaderboardSize, len(top))
	}
}

func TestClearResultsPublishes(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	quiz, _ := seedQuiz(t, service, "Math", 1)
	if _, err := service.Submit(ctx, join(t, service, "Ada"), nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	updates, cancel, err := service.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if lb := <-updates; len(lb.Entries) != 1 {
		t.Fatalf("expected initial board with one entry, got %d", len(lb.Entries))
	}

	if err := service.ClearResults(ctx, quiz.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	select {
	case lb := <-updates:
		if len(lb.Entries) != 0 {
			t.Fatalf("expected empty board, got %d", len(lb.Entries))
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an update after clearing results")
	}
}

func TestJoinRequiresActiveQuizAndName(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, time.Now)
	if _, err := service.Join(ctx, "Ada"); !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected no active quiz, got %v", err)
	}
	quiz, _ := service.CreateQuiz(ctx, "Math", "")
	if _, err := service.Join(ctx, "  "); !errors.Is(err, domain.ErrBlankUsername) {
		t.Fatalf("expected blank username error, got %v", err)
	}
	id, err := service.Join(ctx, " Ada ")
	if err != nil || id.Username != "Ada" || id.QuizID != quiz.ID {
		t.Fatalf("unexpected identity %+v (%v)", id, err)
	}
}

func newTestService(t *testing.T, now func() time.Time) *app.QuizService {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return app.NewQuizServiceWithClock(database.NewStore(db), memory.NewActiveQuizCache(time.Minute), nil, now)
}

// seedQuiz creates an active quiz with n questions whose correct option is always A.
func seedQuiz(t *testing.T, service *app.QuizService, title string, n int) (domain.Quiz, []domain.Question) {
	t.Helper()
	ctx := context.Background()
	quiz, err := service.CreateQuiz(ctx, title, "")
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := service.AddQuestion(ctx, quiz.ID, domain.QuestionInput{Text: "q", OptionA: "right", OptionB: "wrong", CorrectOption: "A"})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		questions = append(questions, q)
	}
	return quiz, questions
}

func join(t *testing.T, service *app.QuizService, name string) app.Identity {
	t.Helper()
	id, err := service.Join(context.Background(), name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return id
}

func assertOnlyActive(t *testing.T, service *app.QuizService, quizID int64) {
	t.Helper()
	quizzes, err := service.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, q := range quizzes {
		if q.Active {
			active++
			if q.ID != quizID {
				t.Fatalf("expected quiz %d active, got %d", quizID, q.ID)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active quiz, got %d", active)
	}
}
