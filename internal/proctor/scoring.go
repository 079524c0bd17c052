package proctor

import "github.com/iliyamo/proctored-exam/internal/model"

// Score is the outcome of ComputeScore.
type Score struct {
	Correct int
	Total   int
}

// ComputeScore counts the answer slots marked correct.  It has no side
// effects, so manual submission and auto-submission agree on identical
// answers.  Total is the exam's question count when the exam is known and
// the attempt's recorded total otherwise.
func ComputeScore(a *model.ExamAttempt, exam *model.Exam) Score {
	correct := 0
	for _, ans := range a.Answers {
		if ans.IsCorrect {
			correct++
		}
	}
	total := a.TotalQuestions
	if exam != nil {
		total = len(exam.Questions)
	}
	return Score{Correct: correct, Total: total}
}
