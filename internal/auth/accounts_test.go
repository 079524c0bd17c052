package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/proctored-exam/internal/model"
)

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Handle: "ab", Password: "secret1"},
		{Handle: "abc", Password: "12345"},
		{Handle: "abc", Password: "secret1", Email: "not-an-email"},
	}
	for _, in := range cases {
		if _, err := svc.Register(ctx, in); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("Register(%+v) err = %v, want INVALID_INPUT", in, err)
		}
	}
}

func TestRegister_DuplicateHandle(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "grace")
	_, err := svc.Register(context.Background(), RegisterInput{Handle: "grace", Password: "secret1"})
	if !errors.Is(err, model.ErrUserExists) {
		t.Fatalf("err = %v, want USER_EXISTS", err)
	}
}

func TestRegister_RoleDefaultsToStudent(t *testing.T) {
	svc, _, _ := newTestService(t)
	u, err := svc.Register(context.Background(), RegisterInput{Handle: "heidi", Password: "secret1", Role: "superuser"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != model.RoleStudent {
		t.Fatalf("role = %s, want student", u.Role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "ivan")
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "ivan", "wrong-pass", ClientContext{}); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want INVALID_CREDENTIALS", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "secret1", ClientContext{}); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want INVALID_CREDENTIALS", err)
	}
}
