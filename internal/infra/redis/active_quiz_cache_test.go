package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizhost/internal/domain"
)

func TestActiveQuizCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{active: sampleActive()}
	cache := NewActiveQuizCache(newClient(mr), time.Minute)

	if _, err := cache.GetActive(context.Background(), loader.load); err != nil {
		t.Fatalf("get active: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:active:0") {
		t.Fatalf("expected snapshot key to be set")
	}

	// Second call should hit cache, loader not incremented.
	active, err := cache.GetActive(context.Background(), loader.load)
	if err != nil {
		t.Fatalf("get active 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if active.Quiz.Title != "Math" || len(active.Questions) != 1 || active.Questions[0].CorrectOption != "B" {
		t.Fatalf("snapshot did not survive redis: %+v", active)
	}
}

func TestActiveQuizCacheInvalidateBumpsVersion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{active: sampleActive()}
	cache := NewActiveQuizCache(newClient(mr), time.Minute)

	_, _ = cache.GetActive(context.Background(), loader.load)
	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.GetActive(context.Background(), loader.load)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
	if !mr.Exists("quiz:active:1") {
		t.Fatalf("expected snapshot under the new version")
	}
}

type countingLoader struct {
	active domain.ActiveQuiz
	calls  int
}

func (l *countingLoader) load(context.Context) (domain.ActiveQuiz, error) {
	l.calls++
	return l.active, nil
}

func sampleActive() domain.ActiveQuiz {
	return domain.ActiveQuiz{
		Quiz: domain.Quiz{ID: 7, Title: "Math", TimePerQuestion: 15, Active: true},
		Questions: []domain.Question{
			{ID: 1, QuizID: 7, Text: "2+2?", OptionA: "3", OptionB: "4", CorrectOption: "B"},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
