package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/proctored-exam/internal/model"
)

func TestTranslateTxErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadlock", &mysql.MySQLError{Number: 1213}, model.ErrConcurrentUpdate},
		{"lock wait", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1205}), model.ErrConcurrentUpdate},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateTxErr(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}

	other := &mysql.MySQLError{Number: 1146}
	if got := translateTxErr(other); got != other {
		t.Fatalf("unrelated errors should pass through, got %v", got)
	}
}

func TestIsDuplicateAndNotFound(t *testing.T) {
	if !isDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})) {
		t.Error("1062 should be a duplicate")
	}
	if isDuplicate(errors.New("boom")) {
		t.Error("plain errors are not duplicates")
	}
	if !errors.Is(notFound(sql.ErrNoRows), ErrNotFound) {
		t.Error("sql.ErrNoRows should map to ErrNotFound")
	}
}
