package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Violation names the integrity constraint a write broke.
type Violation int

const (
	NoViolation Violation = iota
	UniqueViolation
	ForeignKeyViolation
)

var pgViolations = map[string]Violation{
	"23505": UniqueViolation,
	"23503": ForeignKeyViolation,
}

// Driver messages for dialects whose errors reach us as plain strings
// (glebarez/sqlite, go-sql-driver/mysql through the gorm driver).
var messageViolations = []struct {
	fragment  string
	violation Violation
}{
	{"duplicate key value violates unique constraint", UniqueViolation},
	{"unique constraint failed", UniqueViolation},
	{"error 1062", UniqueViolation},
	{"violates foreign key constraint", ForeignKeyViolation},
	{"foreign key constraint failed", ForeignKeyViolation},
	{"error 1452", ForeignKeyViolation},
}

// Classify reports which constraint err violated, if any.
func Classify(err error) Violation {
	if err == nil {
		return NoViolation
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return UniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ForeignKeyViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgViolations[pgErr.Code]
	}

	msg := strings.ToLower(err.Error())
	for _, m := range messageViolations {
		if strings.Contains(msg, m.fragment) {
			return m.violation
		}
	}
	return NoViolation
}

// ConstraintName returns the violated constraint when the driver reports it.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func IsDuplicateKeyErr(err error) bool {
	return Classify(err) == UniqueViolation
}

func IsForeignKeyErr(err error) bool {
	return Classify(err) == ForeignKeyViolation
}

func IsNotFoundErr(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
