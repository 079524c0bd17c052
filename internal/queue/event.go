// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names, one durable queue per event type.
const (
    ViolationLoggedQueue = "violation.logged"
    AttemptFinishedQueue = "attempt.finished"
)

// ViolationLoggedEvent is published after a violation has been committed.
// It carries enough for downstream consumers to log or alert without
// querying the primary database.
type ViolationLoggedEvent struct {
    ViolationID    uint64 `json:"violation_id"`
    AttemptID      uint64 `json:"attempt_id"`
    UserID         uint64 `json:"user_id"`
    ExamID         uint64 `json:"exam_id"`
    Type           string `json:"type"`
    Severity       string `json:"severity"`
    ViolationCount int    `json:"violation_count"`
    MaxViolations  int    `json:"max_violations"`
    AutoSubmitted  bool   `json:"auto_submitted"`
    OccurredAt     string `json:"occurred_at"`
}

// AttemptFinishedEvent is published when an attempt reaches a terminal
// status, whether by explicit submission or by the violation threshold.
type AttemptFinishedEvent struct {
    AttemptID      uint64 `json:"attempt_id"`
    UserID         uint64 `json:"user_id"`
    ExamID         uint64 `json:"exam_id"`
    Status         string `json:"status"`
    Score          int    `json:"score"`
    TotalQuestions int    `json:"total_questions"`
    ViolationCount int    `json:"violation_count"`
    SubmittedAt    string `json:"submitted_at"`
}
