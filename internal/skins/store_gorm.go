package skins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/models"
)

// GormStore implements Store on the primary SQL database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. The schema is expected to be migrated already.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("skin store: db is required")
	}
	return &GormStore{db: db}, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.SkinRecord, error) {
	var rec models.SkinRecord
	err := s.db.WithContext(ctx).Where("uuid = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find by id", err)
	}
	return &rec, nil
}

func (s *GormStore) FindByNickname(ctx context.Context, nickname string) ([]models.SkinRecord, error) {
	var recs []models.SkinRecord
	err := s.db.WithContext(ctx).
		Where("nickname = ?", strings.ToLower(nickname)).
		Order("expires_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, storeErr("find by nickname", err)
	}
	return recs, nil
}

func (s *GormStore) FindByDisplayName(ctx context.Context, name string) ([]models.SkinRecord, error) {
	var recs []models.SkinRecord
	err := s.db.WithContext(ctx).
		Where("default_nick = ?", name).
		Order("expires_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, storeErr("find by display name", err)
	}
	return recs, nil
}

// Search matches valid rows whose nickname contains fragment, ordered by
// display name. Wildcards in fragment are matched literally.
func (s *GormStore) Search(ctx context.Context, fragment string, limit, offset int) ([]SearchHit, int64, error) {
	pattern := "%" + escapeLike(strings.ToLower(fragment)) + "%"
	query := s.db.WithContext(ctx).
		Model(&models.SkinRecord{}).
		Where("nickname LIKE ? ESCAPE '!' AND valid = ?", pattern, true).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr("count search", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	var rows []models.SkinRecord
	err := query.
		Select("uuid", "default_nick", "head").
		Order("default_nick ASC").
		Order("uuid ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, storeErr("search", err)
	}

	hits := make([]SearchHit, len(rows))
	for i, row := range rows {
		hits[i] = SearchHit{UUID: row.UUID, DefaultNick: row.DefaultNick, Head: row.Head}
	}
	return hits, total, nil
}

func (s *GormStore) Insert(ctx context.Context, rec *models.SkinRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return storeErr("insert", err)
	}
	return nil
}

// Update overwrites every mutable column of an existing row.
func (s *GormStore) Update(ctx context.Context, rec *models.SkinRecord) error {
	res := s.db.WithContext(ctx).
		Model(&models.SkinRecord{}).
		Where("uuid = ?", rec.UUID).
		Select("nickname", "default_nick", "expires_at", "skin", "cape", "head", "valid", "updated_at").
		Updates(rec)
	if res.Error != nil {
		return storeErr("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return storeErr("update", ErrMissingRecord)
	}
	return nil
}

// Rename changes the names of a row without touching its textures or expiry.
func (s *GormStore) Rename(ctx context.Context, id, displayName string) error {
	err := s.db.WithContext(ctx).
		Model(&models.SkinRecord{}).
		Where("uuid = ?", id).
		Updates(map[string]any{
			"default_nick": displayName,
			"nickname":     strings.ToLower(displayName),
		}).Error
	if err != nil {
		return storeErr("rename", err)
	}
	return nil
}

func (s *GormStore) SetValid(ctx context.Context, id string, valid bool) error {
	err := s.db.WithContext(ctx).
		Model(&models.SkinRecord{}).
		Where("uuid = ?", id).
		Update("valid", valid).Error
	if err != nil {
		return storeErr("set valid", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("uuid IN ?", ids).Delete(&models.SkinRecord{}).Error; err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func (s *GormStore) DuplicateDisplayNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.SkinRecord{}).
		Where("valid = ?", true).
		Group("default_nick").
		Having("COUNT(*) > 1").
		Order("default_nick ASC").
		Pluck("default_nick", &names).Error
	if err != nil {
		return nil, storeErr("duplicate names", err)
	}
	return names, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
