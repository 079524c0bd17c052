package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/proctored-exam/internal/database"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// openTestDB connects to TEST_MYSQL_DSN and applies migrations, or skips.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := database.Open(context.Background(), dsn)
	if err != nil {
		t.Skipf("cannot reach test database: %v", err)
	}
	if err := database.RunMigrations(database.MigrationURL(dsn)); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, tbl := range []string{"violations", "exam_attempts", "exam_assignments", "exam_questions", "exams", "sessions", "users"} {
		if _, err := db.Exec("DELETE FROM " + tbl); err != nil {
			t.Fatalf("clean %s: %v", tbl, err)
		}
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMySQL_AttemptLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	exams := repository.NewExamRepo(db)
	attempts := repository.NewAttemptRepo(db)
	violations := repository.NewViolationRepo(db)

	u := &model.User{Handle: "mysql-student", PasswordHash: "x", Role: model.RoleStudent}
	if err := users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	e := &model.Exam{
		Title: "Integration", DurationMin: 30, StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour),
		Published: true, Active: true,
		Questions: []model.Question{{Prompt: "2+2", Options: []string{"3", "4"}, CorrectAnswer: 1}},
	}
	if err := exams.Create(ctx, e); err != nil {
		t.Fatal(err)
	}

	a := model.NewAttempt(u.ID, e, 3, now)
	if err := attempts.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	dup := model.NewAttempt(u.ID, e, 3, now)
	if err := attempts.Create(ctx, dup); !errors.Is(err, repository.ErrAttemptExists) {
		t.Fatalf("second in-progress attempt: err = %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := attempts.Update(ctx, a.ID, func(m *repository.AttemptMutation) error {
				m.Attempt.ViolationCount++
				m.Violation = &model.Violation{
					AttemptID: a.ID, UserID: u.ID, ExamID: e.ID,
					Type: model.ViolationTabSwitch, Severity: model.SeverityHigh,
					Description: "Violation: TAB_SWITCH", Metadata: map[string]any{}, CreatedAt: now,
				}
				return nil
			})
			if err != nil && !errors.Is(err, model.ErrConcurrentUpdate) {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := attempts.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := violations.ListByAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ViolationCount != len(vs) {
		t.Fatalf("counter %d disagrees with %d stored violations", got.ViolationCount, len(vs))
	}
}
