package app

import (
	"crypto/subtle"
	"strings"

	"quizhost/internal/domain"
)

// Identity is whatever the client claims: a free-text name plus the quiz it joined.
// It is not verified and not unique.
type Identity struct {
	Username string
	QuizID   int64
}

// IdentityFrom extracts the student claim from a session.
func IdentityFrom(sess domain.Session) Identity {
	return Identity{Username: sess.Username, QuizID: sess.QuizID}
}

// Apply writes the claim back into a session.
func (id Identity) Apply(sess *domain.Session) {
	sess.Username = id.Username
	sess.QuizID = id.QuizID
}

// Joined reports whether the identity holds both a name and a quiz.
func (id Identity) Joined() bool {
	return id.Username != "" && id.QuizID != 0
}

// JoinIdentity binds a trimmed, non-empty name to the active quiz.
func JoinIdentity(active domain.Quiz, name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, domain.ErrBlankUsername
	}
	return Identity{Username: name, QuizID: active.ID}, nil
}

// CheckEntry allows answering only when a quiz is active, the identity joined
// that exact quiz, and a name is present.
func CheckEntry(id Identity, active *domain.Quiz) error {
	if active == nil {
		return domain.ErrNoActiveQuiz
	}
	if id.QuizID == 0 || id.QuizID != active.ID || id.Username == "" {
		return domain.ErrNotJoined
	}
	return nil
}

// CheckAdminPassword compares the shared admin password for exact equality.
func CheckAdminPassword(configured, given string) bool {
	return subtle.ConstantTimeCompare([]byte(configured), []byte(given)) == 1
}
