package skins

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andcoolsystems/eldraxis/internal/models"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
	"github.com/andcoolsystems/eldraxis/pkg/metrics"
)

// TTL is how long a written record is served without asking upstream again.
const TTL = 3 * time.Hour

// Mode selects how GetOrRefresh treats an existing fresh record.
type Mode int

const (
	// ModeFresh serves a fresh record from the store and refreshes otherwise.
	ModeFresh Mode = iota
	// ModeForceRefresh always refetches textures, regardless of freshness.
	ModeForceRefresh
)

func (m Mode) String() string {
	if m == ModeForceRefresh {
		return "force_refresh"
	}
	return "fresh"
}

// Source tells where a Result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
)

// Request asks for the textures of one account.
type Request struct {
	Identifier string
	Mode       Mode
	WantCape   bool
}

// Result is what GetOrRefresh hands back to the transport layer.
type Result struct {
	UUID      string
	Name      string
	Skin      []byte
	Cape      []byte
	Head      []byte
	ExpiresAt time.Time
	Source    Source
	WantCape  bool
}

// Envelope is the structured form of a result: both textures base64 encoded.
// Cape is the empty string when the account has none.
type Envelope struct {
	Skin string `json:"skin"`
	Cape string `json:"cape"`
}

// Envelope encodes the result's textures.
func (r *Result) Envelope() Envelope {
	return Envelope{
		Skin: base64.StdEncoding.EncodeToString(r.Skin),
		Cape: base64.StdEncoding.EncodeToString(r.Cape),
	}
}

// HasCape reports whether the account has a cape.
func (r *Result) HasCape() bool {
	return len(r.Cape) > 0
}

// ProfileInfo is the metadata view of an account combined with its cache state.
type ProfileInfo struct {
	UUID       string
	DashedUUID string
	Name       string
	Timestamp  int64
	Textures   mojang.Textures
	// Cached is set when a valid record for the account exists.
	Cached     bool
	LastCached time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCollisionResolver overrides the resolver used to repair name collisions.
func WithCollisionResolver(c *CollisionResolver) Option {
	return func(s *Service) {
		if c != nil {
			s.collisions = c
		}
	}
}

// WithHeadScale sets the default texel size of 3D head renders.
func WithHeadScale(scale int) Option {
	return func(s *Service) {
		if scale > 0 {
			s.headScale = scale
		}
	}
}

// Service is the cache orchestrator: it serves fresh records from the store
// and otherwise resolves, fetches, derives and writes back. Refreshes for the
// same account are collapsed into one in-flight sequence.
type Service struct {
	store      Store
	resolver   IdentityResolver
	fetcher    *TextureFetcher
	collisions *CollisionResolver
	flights    singleflight.Group
	now        func() time.Time
	log        *zap.Logger
	headScale  int
}

// NewService wires the orchestrator. The identity resolver given here is used
// for requests; collision repair uses the same one unless overridden.
func NewService(store Store, resolver IdentityResolver, downloader Downloader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("skin service: store is required")
	}
	if resolver == nil {
		return nil, errors.New("skin service: identity resolver is required")
	}
	if downloader == nil {
		return nil, errors.New("skin service: downloader is required")
	}

	s := &Service{
		store:     store,
		resolver:  resolver,
		now:       time.Now,
		log:       zap.NewNop(),
		headScale: DefaultHead3DScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fetcher = NewTextureFetcher(downloader, s.log)
	if s.collisions == nil {
		s.collisions = NewCollisionResolver(store, resolver, s.log)
	}
	return s, nil
}

// Collisions exposes the collision resolver for background sweeps.
func (s *Service) Collisions() *CollisionResolver {
	return s.collisions
}

// GetOrRefresh returns the textures of the account named by req.Identifier.
// Errors are always one of ErrNotFound, ErrUpstream, ErrDecode, ErrStore,
// ErrInternal or the context's error.
func (s *Service) GetOrRefresh(ctx context.Context, req Request) (*Result, error) {
	res, err := s.getOrRefresh(ctx, req)
	return res, s.boundary(ctx, "get or refresh", err)
}

func (s *Service) getOrRefresh(ctx context.Context, req Request) (*Result, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}

	if req.Mode == ModeFresh {
		// A nickname hit is served without asking upstream, so a handle that
		// changed owners keeps answering with the previous owner's row until
		// that row's TTL runs out.
		rec, err := s.lookupFresh(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			metrics.SkinLookups.WithLabelValues("cache_hit").Inc()
			return resultFrom(rec, SourceCache, req.WantCape), nil
		}
	}

	profile, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.SkinLookups.WithLabelValues("not_found").Inc()
			s.forget(ctx, identifier)
		}
		return nil, err
	}

	s.repairCollisions(ctx, profile.Name)

	rec, err := s.store.FindByID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if req.Mode == ModeFresh && rec.FreshAt(s.now()) {
		if rec.DefaultNick != profile.Name {
			if err := s.store.Rename(ctx, rec.UUID, profile.Name); err != nil {
				return nil, err
			}
			rec.DefaultNick = profile.Name
			rec.Nickname = strings.ToLower(profile.Name)
		}
		metrics.SkinLookups.WithLabelValues("cache_hit").Inc()
		return resultFrom(rec, SourceCache, req.WantCape), nil
	}

	written, err := s.refresh(ctx, profile, req.Mode)
	if err != nil {
		return nil, err
	}
	metrics.SkinLookups.WithLabelValues("refreshed").Inc()
	return resultFrom(written, SourceUpstream, req.WantCape), nil
}

// Head returns the derived 36x36 head of an account.
func (s *Service) Head(ctx context.Context, identifier string) ([]byte, error) {
	res, err := s.GetOrRefresh(ctx, Request{Identifier: identifier, Mode: ModeFresh})
	if err != nil {
		return nil, err
	}
	return res.Head, nil
}

// Cape returns the cape texture of an account, ErrNoCape when it has none.
func (s *Service) Cape(ctx context.Context, identifier string) ([]byte, error) {
	res, err := s.GetOrRefresh(ctx, Request{Identifier: identifier, Mode: ModeFresh, WantCape: true})
	if err != nil {
		return nil, err
	}
	if !res.HasCape() {
		return nil, ErrNoCape
	}
	return res.Cape, nil
}

// Head3D renders the cached skin of an account as a 3D head.
func (s *Service) Head3D(ctx context.Context, identifier string, angles Angles) ([]byte, error) {
	res, err := s.GetOrRefresh(ctx, Request{Identifier: identifier, Mode: ModeFresh})
	if err != nil {
		return nil, err
	}
	img, err := RenderHead3D(res.Skin, angles, s.headScale)
	return img, s.boundary(ctx, "render head", err)
}

// Profile resolves an account and reports whether and when it was cached.
// It never writes to the store.
func (s *Service) Profile(ctx context.Context, identifier string) (*ProfileInfo, error) {
	info, err := s.profile(ctx, identifier)
	return info, s.boundary(ctx, "profile", err)
}

func (s *Service) profile(ctx context.Context, identifier string) (*ProfileInfo, error) {
	p, err := s.resolver.Resolve(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, err
	}

	info := &ProfileInfo{
		UUID:       p.ID,
		DashedUUID: p.DashedID(),
		Name:       p.Name,
		Timestamp:  p.Timestamp,
		Textures:   p.Textures,
	}

	rec, err := s.store.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Valid {
		info.Cached = true
		info.LastCached = rec.ExpiresAt.Add(-TTL)
	}
	return info, nil
}

// lookupFresh finds a record that can be served without any upstream call:
// by id, or by nickname when exactly one valid row carries it.
func (s *Service) lookupFresh(ctx context.Context, identifier string) (*models.SkinRecord, error) {
	now := s.now()

	if mojang.IsCanonicalID(identifier) {
		rec, err := s.store.FindByID(ctx, mojang.NormalizeID(identifier))
		if err != nil || !rec.FreshAt(now) {
			return nil, err
		}
		return rec, nil
	}

	recs, err := s.store.FindByNickname(ctx, identifier)
	if err != nil {
		return nil, err
	}
	var match *models.SkinRecord
	for i := range recs {
		if !recs[i].Valid {
			continue
		}
		if match != nil {
			// ambiguous, let resolution and collision repair decide
			return nil, nil
		}
		match = &recs[i]
	}
	if !match.FreshAt(now) {
		return nil, nil
	}
	return match, nil
}

// forget deletes rows for an identifier the identity service no longer knows.
func (s *Service) forget(ctx context.Context, identifier string) {
	var ids []string
	if mojang.IsCanonicalID(identifier) {
		ids = append(ids, mojang.NormalizeID(identifier))
	} else {
		recs, err := s.store.FindByNickname(ctx, identifier)
		if err != nil {
			s.log.Warn("lookup for deleted account failed", zap.String("identifier", identifier), zap.Error(err))
			return
		}
		for _, rec := range recs {
			ids = append(ids, rec.UUID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := s.store.Delete(ctx, ids...); err != nil {
		s.log.Warn("delete of missing account failed", zap.Strings("uuids", ids), zap.Error(err))
		return
	}
	s.log.Info("deleted records of missing account", zap.String("identifier", identifier), zap.Strings("uuids", ids))
}

// repairCollisions runs the collision resolver when a display name is held by
// more than one row. Failures are logged; the request carries on.
func (s *Service) repairCollisions(ctx context.Context, name string) {
	siblings, err := s.store.FindByDisplayName(ctx, name)
	if err != nil {
		s.log.Warn("collision lookup failed", zap.String("name", name), zap.Error(err))
		return
	}
	if len(siblings) < 2 {
		return
	}
	report, err := s.collisions.Resolve(ctx, siblings)
	if err != nil {
		s.log.Warn("collision repair incomplete", zap.String("name", name), zap.Error(err))
	}
	if report.Changed() {
		s.log.Info("repaired name collision",
			zap.String("name", name),
			zap.Int("renamed", report.Renamed),
			zap.Int("deleted", report.Deleted),
			zap.Int("invalidated", report.Invalidated),
		)
	}
}

// refresh runs the fetch, derive and write sequence for profile, sharing one
// in-flight sequence between all concurrent callers for the same account and
// mode. Forced refreshes never join a plain one, whose freshness re-check
// could hand back the stored row without a refetch.
// The sequence runs detached from the first caller's cancellation so a
// disconnecting client does not fail everyone else.
func (s *Service) refresh(ctx context.Context, profile *mojang.Profile, mode Mode) (*models.SkinRecord, error) {
	ch := s.flights.DoChan(profile.ID+"|"+mode.String(), func() (interface{}, error) {
		return s.runRefresh(context.WithoutCancel(ctx), profile, mode)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RefreshesShared.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		rec := *res.Val.(*models.SkinRecord)
		return &rec, nil
	}
}

func (s *Service) runRefresh(ctx context.Context, profile *mojang.Profile, mode Mode) (rec *models.SkinRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic during refresh",
				zap.String("uuid", profile.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			rec, err = nil, fmt.Errorf("%w: refresh panicked", ErrInternal)
		}
	}()

	existing, err := s.store.FindByID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	// a flight that finished just before this one may already have written
	if mode == ModeFresh && existing.FreshAt(s.now()) && existing.DefaultNick == profile.Name {
		return existing, nil
	}

	payload, err := s.fetcher.Fetch(ctx, profile.Textures)
	if err != nil {
		return nil, err
	}
	head, err := DeriveHead(payload.Skin)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(TTL)
	if existing != nil && existing.ExpiresAt.After(expires) {
		expires = existing.ExpiresAt
	}
	rec = &models.SkinRecord{
		UUID:        profile.ID,
		Nickname:    strings.ToLower(profile.Name),
		DefaultNick: profile.Name,
		ExpiresAt:   expires,
		Skin:        payload.Skin,
		Cape:        payload.Cape,
		Head:        head,
		Valid:       true,
	}

	if existing == nil {
		err = s.store.Insert(ctx, rec)
		if err != nil && isUniqueConstraintError(err) {
			err = s.store.Update(ctx, rec)
		}
	} else {
		err = s.store.Update(ctx, rec)
		if err != nil && errors.Is(err, ErrMissingRecord) {
			err = s.store.Insert(ctx, rec)
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("refreshed skin",
		zap.String("uuid", rec.UUID),
		zap.String("name", rec.DefaultNick),
		zap.Bool("cape", rec.HasCape()),
		zap.String("mode", mode.String()),
	)
	return rec, nil
}

// boundary maps anything outside the error taxonomy to ErrInternal so that
// callers never see raw driver or library errors.
func (s *Service) boundary(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if known(err) {
		if errors.Is(err, ErrStore) || errors.Is(err, ErrUpstream) {
			s.log.Warn(op+" failed", zap.Error(err))
		}
		return err
	}
	s.log.Error(op+" failed unexpectedly", zap.Error(err))
	metrics.SkinLookups.WithLabelValues("error").Inc()
	return fmt.Errorf("%w: %s", ErrInternal, op)
}

func resultFrom(rec *models.SkinRecord, src Source, wantCape bool) *Result {
	return &Result{
		UUID:      rec.UUID,
		Name:      rec.DefaultNick,
		Skin:      rec.Skin,
		Cape:      rec.Cape,
		Head:      rec.Head,
		ExpiresAt: rec.ExpiresAt,
		Source:    src,
		WantCape:  wantCape,
	}
}
