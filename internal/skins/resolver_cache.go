package skins

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/internal/cache"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
)

// CachingResolver memoises successful resolutions in a cache.Store for a
// short time, shielding the identity service from bursts of lookups for the
// same name. Failures are never cached.
type CachingResolver struct {
	next  IdentityResolver
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

type cachedProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"ts"`
	SkinURL   string `json:"skin"`
	CapeURL   string `json:"cape,omitempty"`
	Slim      bool   `json:"slim,omitempty"`
}

// NewCachingResolver wraps next. A non-positive ttl or nil store disables
// caching and returns next unchanged.
func NewCachingResolver(next IdentityResolver, store cache.Store, ttl time.Duration, log *zap.Logger) IdentityResolver {
	if store == nil || ttl <= 0 {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachingResolver{next: next, store: store, ttl: ttl, log: log}
}

// Resolve answers from the cache when it can. While a memoised profile lives,
// renames and deletions upstream go unnoticed by callers.
func (r *CachingResolver) Resolve(ctx context.Context, identifier string) (*mojang.Profile, error) {
	if mojang.IsCanonicalID(identifier) {
		identifier = mojang.NormalizeID(identifier)
	}
	key := cache.ProfileKey(identifier)

	if raw, ok, err := r.store.Get(ctx, key); err != nil {
		r.log.Debug("profile cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var cp cachedProfile
		if err := json.Unmarshal(raw, &cp); err == nil && mojang.IsCanonicalID(cp.ID) {
			return &mojang.Profile{
				ID:        cp.ID,
				Name:      cp.Name,
				Timestamp: cp.Timestamp,
				Textures:  mojang.Textures{SkinURL: cp.SkinURL, CapeURL: cp.CapeURL, Slim: cp.Slim},
			}, nil
		}
	}

	profile, err := r.next.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cachedProfile{
		ID:        profile.ID,
		Name:      profile.Name,
		Timestamp: profile.Timestamp,
		SkinURL:   profile.Textures.SkinURL,
		CapeURL:   profile.Textures.CapeURL,
		Slim:      profile.Textures.Slim,
	})
	if err == nil {
		if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
			r.log.Debug("profile cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return profile, nil
}
