// Package fixtures loads users and exams from a YAML file so a fresh
// database (or the in-memory store) can be populated for local use.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/model"
	"github.com/iliyamo/proctored-exam/internal/repository"
)

// File is the YAML document.
type File struct {
	Users []User `yaml:"users"`
	Exams []Exam `yaml:"exams"`
}

type User struct {
	Handle   string `yaml:"handle"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
}

type Question struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Answer  int      `yaml:"answer"`
}

// Exam times are optional; a missing start means "an hour ago" and a
// missing end means "a week after start".
type Exam struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	DurationMin int        `yaml:"duration"`
	StartTime   *time.Time `yaml:"start_time"`
	EndTime     *time.Time `yaml:"end_time"`
	Published   *bool      `yaml:"published"`
	Active      *bool      `yaml:"active"`
	Questions   []Question `yaml:"questions"`
	AssignTo    []string   `yaml:"assign"`
}

// Load reads a fixture file from path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a fixture document.
func Decode(r io.Reader) (*File, error) {
	var out File
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for i, e := range out.Exams {
		for j, q := range e.Questions {
			if q.Answer < 0 || q.Answer >= len(q.Options) {
				return nil, fmt.Errorf("exam %d (%s) question %d: answer %d out of range", i, e.Title, j, q.Answer)
			}
		}
	}
	return &out, nil
}

// Summary counts what Apply created.
type Summary struct {
	Users int
	Exams int
}

// Apply registers the users (existing handles are reused) and creates the
// exams with their assignments.
func Apply(ctx context.Context, f *File, accounts *auth.Service, users repository.UserRepository, exams repository.ExamRepository, now time.Time) (Summary, error) {
	var sum Summary
	for _, u := range f.Users {
		_, err := accounts.Register(ctx, auth.RegisterInput{
			Handle: u.Handle, Password: u.Password, Name: u.Name, Email: u.Email, Role: u.Role,
		})
		switch {
		case err == nil:
			sum.Users++
		case errors.Is(err, model.ErrUserExists):
		default:
			return sum, fmt.Errorf("user %s: %w", u.Handle, err)
		}
	}

	for _, e := range f.Exams {
		exam := toModel(e, now)
		if err := exams.Create(ctx, exam); err != nil {
			return sum, fmt.Errorf("exam %s: %w", e.Title, err)
		}
		ids := make([]uint64, 0, len(e.AssignTo))
		for _, handle := range e.AssignTo {
			u, err := users.GetByHandle(ctx, handle)
			if err != nil {
				return sum, fmt.Errorf("assign %s to %s: %w", handle, e.Title, err)
			}
			ids = append(ids, u.ID)
		}
		if err := exams.Assign(ctx, exam.ID, ids); err != nil {
			return sum, fmt.Errorf("assign %s: %w", e.Title, err)
		}
		sum.Exams++
	}
	return sum, nil
}

func toModel(e Exam, now time.Time) *model.Exam {
	start := now.Add(-time.Hour)
	if e.StartTime != nil {
		start = e.StartTime.UTC()
	}
	end := start.Add(7 * 24 * time.Hour)
	if e.EndTime != nil {
		end = e.EndTime.UTC()
	}
	duration := e.DurationMin
	if duration <= 0 {
		duration = 60
	}
	qs := make([]model.Question, len(e.Questions))
	for i, q := range e.Questions {
		qs[i] = model.Question{Prompt: q.Prompt, Options: q.Options, CorrectAnswer: q.Answer}
	}
	return &model.Exam{
		Title:       e.Title,
		Description: e.Description,
		DurationMin: duration,
		Questions:   qs,
		StartTime:   start,
		EndTime:     end,
		Published:   boolOr(e.Published, true),
		Active:      boolOr(e.Active, true),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
