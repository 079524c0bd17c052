package model

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestAttemptStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AttemptStatus
		want     bool
	}{
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusAutoSubmitted, true},
		{StatusInProgress, StatusFlagged, true},
		{StatusCompleted, StatusAutoSubmitted, false},
		{StatusAutoSubmitted, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusInProgress, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	for _, s := range []AttemptStatus{StatusCompleted, StatusAutoSubmitted, StatusFlagged} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusInProgress.Terminal() || AttemptStatus("paused").Valid() {
		t.Error("in_progress is not terminal and unknown states are invalid")
	}
}

func TestFinish(t *testing.T) {
	exam := &Exam{ID: 7, Questions: make([]Question, 3)}
	a := NewAttempt(1, exam, 3, now)
	if len(a.Answers) != 3 || a.TotalQuestions != 3 || a.Status != StatusInProgress {
		t.Fatalf("new attempt = %+v", a)
	}

	if err := a.Finish(StatusCompleted, 2, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if a.Score != 2 || a.SubmittedAt == nil || a.EndTime == nil || !a.SubmittedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("finished attempt = %+v", a)
	}
	if err := a.Finish(StatusAutoSubmitted, 0, now); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("second finish err = %v", err)
	}
	if a.Status != StatusCompleted || a.Score != 2 {
		t.Fatal("failed finish must leave the attempt untouched")
	}
}

func TestWarningsRemaining(t *testing.T) {
	a := &ExamAttempt{MaxViolations: 3}
	for i, want := range []int{3, 2, 1, 0, 0} {
		a.ViolationCount = i
		if got := a.WarningsRemaining(); got != want {
			t.Errorf("count %d: got %d want %d", i, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	sel := 1
	end := now
	a := &ExamAttempt{Answers: []Answer{{Selected: &sel}}, EndTime: &end}
	cp := a.Clone()
	*cp.Answers[0].Selected = 3
	cp.Answers[0].IsCorrect = true
	*cp.EndTime = now.Add(time.Hour)
	if *a.Answers[0].Selected != 1 || a.Answers[0].IsCorrect || !a.EndTime.Equal(now) {
		t.Fatal("clone shares state with the original")
	}
}

func TestParseViolationType(t *testing.T) {
	high := []string{"TAB_SWITCH", "WINDOW_BLUR", "FULLSCREEN_EXIT", "COPY_PASTE"}
	medium := []string{"FACE_MOVED", "FACE_NOT_DETECTED", "MULTIPLE_FACES"}
	for _, s := range high {
		vt, err := ParseViolationType(s)
		if err != nil || vt.Severity() != SeverityHigh {
			t.Errorf("%s: %v %v", s, vt.Severity(), err)
		}
	}
	for _, s := range medium {
		vt, err := ParseViolationType(s)
		if err != nil || vt.Severity() != SeverityMedium {
			t.Errorf("%s: %v %v", s, vt.Severity(), err)
		}
	}
	for _, s := range []string{"", "tab_switch", "SCREENSHOT"} {
		if _, err := ParseViolationType(s); !errors.Is(err, ErrInvalidViolationType) {
			t.Errorf("%q: err = %v", s, err)
		}
	}
}

func TestExamOpen(t *testing.T) {
	base := Exam{StartTime: now, EndTime: now.Add(time.Hour), Published: true, Active: true}
	cases := []struct {
		name string
		mod  func(e *Exam)
		at   time.Time
		want bool
	}{
		{"at start", func(*Exam) {}, now, true},
		{"at end", func(*Exam) {}, now.Add(time.Hour), true},
		{"before window", func(*Exam) {}, now.Add(-time.Second), false},
		{"after window", func(*Exam) {}, now.Add(time.Hour + time.Second), false},
		{"unpublished", func(e *Exam) { e.Published = false }, now, false},
		{"inactive", func(e *Exam) { e.Active = false }, now, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := base
			tc.mod(&e)
			if got := e.Open(tc.at); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestSanitizeCopiesOptions(t *testing.T) {
	e := &Exam{Questions: []Question{{Prompt: "p", Options: []string{"a", "b"}, CorrectAnswer: 1}}}
	pub := e.Sanitize()
	pub.Questions[0].Options[0] = "x"
	if e.Questions[0].Options[0] != "a" || pub.Questions[0].Index != 0 {
		t.Fatal("sanitized exam must not alias the source")
	}
}

func TestErrorsMatchByIdentity(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), ErrSessionExpired)
	if !errors.Is(wrapped, ErrSessionExpired) || errors.Is(wrapped, ErrSessionInactive) {
		t.Fatal("sentinels must match by identity")
	}
	var me *Error
	if !errors.As(wrapped, &me) || me.Kind != KindAuth || me.Code != "SESSION_EXPIRED" {
		t.Fatalf("errors.As = %+v", me)
	}
	if ParseRole("admin") != RoleAdmin || ParseRole("root") != RoleStudent {
		t.Fatal("ParseRole")
	}
}
