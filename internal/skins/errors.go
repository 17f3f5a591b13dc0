package skins

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/mojang"
)

var (
	// ErrNotFound means the account does not exist upstream.
	ErrNotFound = mojang.ErrNotFound
	// ErrUpstream means the identity service or a texture host misbehaved.
	ErrUpstream = mojang.ErrUpstream
	// ErrDecode means a texture blob or image could not be decoded.
	ErrDecode = mojang.ErrDecode
	// ErrStore means a persistence operation failed.
	ErrStore = errors.New("skin store failure")
	// ErrInternal is what every unanticipated failure becomes at the service boundary.
	ErrInternal = errors.New("skin service: internal error")
	// ErrNoCape is returned for cape requests on accounts without one.
	ErrNoCape = fmt.Errorf("%w: account has no cape", ErrNotFound)
	// ErrNoContent means a search produced nothing to return.
	ErrNoContent = errors.New("no content")
)

// known reports whether err already belongs to the error taxonomy.
func known(err error) bool {
	for _, target := range []error{ErrNotFound, ErrUpstream, ErrDecode, ErrStore, ErrInternal, ErrNoContent} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// isUniqueConstraintError detects primary key violations across sql vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	// sqlite: "UNIQUE constraint failed: skin_records.uuid"
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
