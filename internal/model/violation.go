package model

import "time"

// ViolationType is the closed set of integrity incidents a client sensor
// may report.
type ViolationType string

const (
	ViolationTabSwitch       ViolationType = "TAB_SWITCH"
	ViolationWindowBlur      ViolationType = "WINDOW_BLUR"
	ViolationFullscreenExit  ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyPaste       ViolationType = "COPY_PASTE"
	ViolationFaceMoved       ViolationType = "FACE_MOVED"
	ViolationFaceNotDetected ViolationType = "FACE_NOT_DETECTED"
	ViolationMultipleFaces   ViolationType = "MULTIPLE_FACES"
)

// Severity is derived from the violation type, never supplied by clients.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severities = map[ViolationType]Severity{
	ViolationTabSwitch:       SeverityHigh,
	ViolationWindowBlur:      SeverityHigh,
	ViolationFullscreenExit:  SeverityHigh,
	ViolationCopyPaste:       SeverityHigh,
	ViolationFaceMoved:       SeverityMedium,
	ViolationFaceNotDetected: SeverityMedium,
	ViolationMultipleFaces:   SeverityMedium,
}

// ParseViolationType accepts only the declared types.
func ParseViolationType(s string) (ViolationType, error) {
	t := ViolationType(s)
	if _, ok := severities[t]; !ok {
		return "", ErrInvalidViolationType
	}
	return t, nil
}

// Severity returns the fixed severity for t.
func (t ViolationType) Severity() Severity {
	if s, ok := severities[t]; ok {
		return s
	}
	return SeverityMedium
}

// Violation is an immutable, append-only incident record owned by an
// attempt.
type Violation struct {
	ID          uint64
	AttemptID   uint64
	UserID      uint64
	ExamID      uint64
	Type        ViolationType
	Severity    Severity
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}
