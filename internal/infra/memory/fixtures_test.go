package memory

import "adaptive-quiz-service/internal/domain"

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Answer: "4", Topic: "arithmetic", Difficulty: 1},
		{ID: "q2", Prompt: "What is 6 * 7?", Options: []string{"42", "48"}, Answer: "42", Topic: "arithmetic", Difficulty: 2},
	}
}
