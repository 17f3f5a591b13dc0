package models

import (
	"time"
)

// SkinRecord is one cached account: the textures fetched for it, the derived
// head, and the names it is known by.
//
// DefaultNick is the display name exactly as the identity service reported it;
// Nickname is its lowercase form and is what lookups and search match on.
type SkinRecord struct {
	UUID        string    `gorm:"primaryKey;size:32" json:"uuid"`
	Nickname    string    `gorm:"size:64;not null;index" json:"nickname"`
	DefaultNick string    `gorm:"size:64;not null;index" json:"default_nick"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	Skin        []byte    `json:"-"`
	Cape        []byte    `json:"-"`
	Head        []byte    `json:"-"`
	Valid       bool      `gorm:"not null;index" json:"valid"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm naming strategy.
func (SkinRecord) TableName() string {
	return "skin_records"
}

// FreshAt reports whether the record can be served without a refresh at t.
func (r *SkinRecord) FreshAt(t time.Time) bool {
	return r != nil && r.ExpiresAt.After(t)
}

// HasCape reports whether the account had a cape when the record was written.
func (r *SkinRecord) HasCape() bool {
	return r != nil && len(r.Cape) > 0
}
