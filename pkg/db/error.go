package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrorKind is the storage-level category of a database error.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUniqueViolation
	KindForeignKeyViolation
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgConnectionClass     = "08"
)

// Classify inspects driver errors from postgres (pgx or lib/pq) and sqlite
// and reports what kind of failure they represent.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if code := sqlState(err); code != "" {
		switch {
		case code == pgUniqueViolation:
			return KindUniqueViolation
		case code == pgForeignKeyViolation:
			return KindForeignKeyViolation
		case strings.HasPrefix(code, pgConnectionClass):
			return KindConnection
		}
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindForeignKeyViolation
	case isConnectionError(err):
		return KindConnection
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"),
		strings.Contains(msg, "UNIQUE constraint failed"):
		return KindUniqueViolation
	case strings.Contains(msg, "violates foreign key constraint"),
		strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return KindForeignKeyViolation
	}

	return KindUnknown
}

func IsDuplicateKeyErr(err error) bool {
	return Classify(err) == KindUniqueViolation
}

func IsForeignKeyErr(err error) bool {
	return Classify(err) == KindForeignKeyViolation
}

func IsConnectionErr(err error) bool {
	return Classify(err) == KindConnection
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isConnectionError(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
