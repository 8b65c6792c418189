package memory

import (
	"context"
	"encoding/json"

	"adaptive-quiz-service/internal/domain"
)

// StaticQuestionSource serves a fixed question list (useful for tests/demos).
type StaticQuestionSource struct {
	questions []domain.Question
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) LoadQuestions(_ context.Context) ([]byte, error) {
	if len(s.questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	return json.Marshal(s.questions)
}
