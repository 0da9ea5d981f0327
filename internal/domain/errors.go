package domain

import "errors"

var (
	// ErrQuizNotFound is returned when a referenced quiz id does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound is returned when a referenced question id does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion indicates a required question field was blank.
	ErrInvalidQuestion = errors.New("question, option A, option B and correct option are required")
	// ErrBlankUsername is returned when a student joins without a name.
	ErrBlankUsername = errors.New("username is required")
	// ErrNoActiveQuiz indicates no quiz is currently active.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrNoQuestions indicates the active quiz has no questions yet.
	ErrNoQuestions = errors.New("active quiz has no questions")
	// ErrNotJoined is returned when the session has not joined the active quiz.
	ErrNotJoined = errors.New("session has not joined the active quiz")
)

// IsNotFound reports whether err refers to a missing quiz or question.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) || errors.Is(err, ErrQuestionNotFound)
}
