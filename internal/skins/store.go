package skins

import (
	"context"
	"errors"

	"github.com/andcoolsystems/eldraxis/internal/models"
)

// ErrMissingRecord is wrapped by Update when no row carries the record's id.
var ErrMissingRecord = errors.New("record does not exist")

// SearchHit is the projection returned by Store.Search.
type SearchHit struct {
	UUID        string
	DefaultNick string
	Head        []byte
}

// Store persists skin records. Implementations must be safe for concurrent use.
// Find methods return (nil, nil) when nothing matches.
type Store interface {
	FindByID(ctx context.Context, id string) (*models.SkinRecord, error)
	// FindByNickname matches the lowercase nickname exactly, valid or not.
	FindByNickname(ctx context.Context, nickname string) ([]models.SkinRecord, error)
	// FindByDisplayName matches default_nick exactly.
	FindByDisplayName(ctx context.Context, name string) ([]models.SkinRecord, error)
	Search(ctx context.Context, fragment string, limit, offset int) ([]SearchHit, int64, error)
	Insert(ctx context.Context, rec *models.SkinRecord) error
	Update(ctx context.Context, rec *models.SkinRecord) error
	Rename(ctx context.Context, id, displayName string) error
	SetValid(ctx context.Context, id string, valid bool) error
	Delete(ctx context.Context, ids ...string) error
	// DuplicateDisplayNames lists display names held by more than one valid row.
	DuplicateDisplayNames(ctx context.Context) ([]string, error)
}
