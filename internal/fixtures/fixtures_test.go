package fixtures

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/repository/memory"
)

const sample = `
users:
  - handle: admin
    password: admin123
    role: admin
  - handle: student1
    password: student123
    name: Student One
    email: student1@example.com
exams:
  - title: Go Basics
    duration: 30
    start_time: 2025-01-01T09:00:00Z
    end_time: 2025-01-01T11:00:00Z
    questions:
      - prompt: Which keyword starts a goroutine?
        options: [go, async, spawn]
        answer: 0
    assign: [student1]
  - title: Draft
    published: false
    questions: []
`

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Users) != 2 || len(f.Exams) != 2 {
		t.Fatalf("users=%d exams=%d", len(f.Users), len(f.Exams))
	}
	if f.Exams[0].StartTime == nil || f.Exams[0].StartTime.Hour() != 9 {
		t.Fatalf("start_time = %v", f.Exams[0].StartTime)
	}
}

func TestDecode_RejectsBadAnswer(t *testing.T) {
	doc := "exams:\n  - title: x\n    questions:\n      - prompt: p\n        options: [a]\n        answer: 3\n"
	if _, err := Decode(strings.NewReader(doc)); err == nil {
		t.Fatal("expected out-of-range answer to be rejected")
	}
}

func TestApply(t *testing.T) {
	store := memory.New()
	svc := auth.NewService(store.Users(), store.Sessions(), auth.Config{Secret: "s", BcryptCost: 4})
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	sum, err := Apply(ctx, f, svc, store.Users(), store.Exams(), now)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Users != 2 || sum.Exams != 2 {
		t.Fatalf("summary = %+v", sum)
	}

	student, err := store.Users().GetByHandle(ctx, "student1")
	if err != nil {
		t.Fatal(err)
	}
	assigned, _ := store.Exams().ListAssigned(ctx, student.ID)
	if len(assigned) != 1 || assigned[0].Title != "Go Basics" || assigned[0].Questions[0].CorrectAnswer != 0 {
		t.Fatalf("assigned = %+v", assigned)
	}

	again, err := Apply(ctx, &File{Users: f.Users}, svc, store.Users(), store.Exams(), now)
	if err != nil || again.Users != 0 {
		t.Fatalf("re-applying users should be a no-op: %+v %v", again, err)
	}
}
