package app

import (
	"strconv"

	"quizhost/internal/domain"
)

// AnswerKey is the key a submission uses for a question: its id in decimal.
func AnswerKey(questionID int64) string {
	return strconv.FormatInt(questionID, 10)
}

// Score counts exact matches of the selected option per question id.
// Total is always the number of questions; unanswered questions count as wrong.
func Score(questions []domain.Question, answers map[string]string) (score, total int) {
	for _, q := range questions {
		selected, ok := answers[AnswerKey(q.ID)]
		if ok && selected != "" && selected == q.CorrectOption {
			score++
		}
	}
	return score, len(questions)
}
