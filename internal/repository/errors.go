// Package repository defines the persistence contracts and their MySQL
// implementations.  Sentinel values in this file let higher layers tell a
// missing row apart from a conflict or a lost race without inspecting
// driver errors themselves.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/proctored-exam/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrAttemptExists is returned by AttemptRepository.Create when an
// in-progress attempt for the same user and exam already exists.
var ErrAttemptExists = errors.New("in-progress attempt already exists")

// MySQL server error numbers the repositories react to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique-key violation.
func isDuplicate(err error) bool {
	return mysqlErrNumber(err) == mysqlErrDuplicateEntry
}

// translateTxErr maps lock contention onto model.ErrConcurrentUpdate so the
// service layer can retry; other errors pass through.
func translateTxErr(err error) error {
	if err == nil {
		return nil
	}
	switch mysqlErrNumber(err) {
	case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
		return model.ErrConcurrentUpdate
	}
	return err
}

// notFound converts sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
