package app

import (
	"errors"
	"testing"

	"quizhost/internal/domain"
)

func TestCheckEntry(t *testing.T) {
	active := &domain.Quiz{ID: 3}
	cases := []struct {
		name   string
		id     Identity
		active *domain.Quiz
		want   error
	}{
		{"no active quiz", Identity{Username: "Ada", QuizID: 3}, nil, domain.ErrNoActiveQuiz},
		{"never joined", Identity{}, active, domain.ErrNotJoined},
		{"joined another quiz", Identity{Username: "Ada", QuizID: 2}, active, domain.ErrNotJoined},
		{"missing name", Identity{QuizID: 3}, active, domain.ErrNotJoined},
		{"ok", Identity{Username: "Ada", QuizID: 3}, active, nil},
	}
	for _, tc := range cases {
		if err := CheckEntry(tc.id, tc.active); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestIdentityRoundTripsThroughSession(t *testing.T) {
	id, err := JoinIdentity(domain.Quiz{ID: 9}, "  Grace ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	var sess domain.Session
	id.Apply(&sess)
	if got := IdentityFrom(sess); got != (Identity{Username: "Grace", QuizID: 9}) || !got.Joined() {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestCheckAdminPassword(t *testing.T) {
	if !CheckAdminPassword("admin123", "admin123") {
		t.Fatalf("expected exact match to pass")
	}
	for _, given := range []string{"", "admin", "Admin123", "admin123 "} {
		if CheckAdminPassword("admin123", given) {
			t.Fatalf("expected %q to be rejected", given)
		}
	}
}

func TestScore(t *testing.T) {
	questions := []domain.Question{
		{ID: 1, CorrectOption: "A"},
		{ID: 2, CorrectOption: "B"},
	}
	score, total := Score(questions, map[string]string{"1": "A", "2": "C", "7": "B"})
	if score != 1 || total != 2 {
		t.Fatalf("got %d/%d, want 1/2", score, total)
	}
	score, total = Score(nil, map[string]string{"1": "A"})
	if score != 0 || total != 0 {
		t.Fatalf("got %d/%d for no questions", score, total)
	}
}
