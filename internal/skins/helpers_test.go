package skins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andcoolsystems/eldraxis/internal/models"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
)

const (
	notchID  = "069a79f444e94726a5befca90e38aaf5"
	jebID    = "853c80ef3c3749fdaa49938b674adae6"
	dinnerID = "61699b2ed3274a019f1e0ea8c3f06bc6"
)

var (
	faceColor = color.NRGBA{R: 200, G: 150, B: 100, A: 255}
	hatColor  = color.NRGBA{R: 10, G: 20, B: 30, A: 255}
)

// makeSkin draws a 64x64 sheet with a solid face and a hat that only covers
// its top-left texel. tweak may alter the sheet further.
func makeSkin(t testing.TB, tweak func(*image.NRGBA)) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, faceColor)
		}
	}
	img.SetNRGBA(hatX, hatY, hatColor)
	if tweak != nil {
		tweak(img)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t testing.TB, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

// memStore is an in-memory Store used to test the orchestrator in isolation.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]models.SkinRecord
	inserts atomic.Int32
	updates atomic.Int32
	renames atomic.Int32
	failAll error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]models.SkinRecord{}}
}

func (m *memStore) put(rec models.SkinRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.UUID] = rec
}

func (m *memStore) get(id string) (models.SkinRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	return rec, ok
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.SkinRecord, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	rec, ok := m.get(id)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) filter(match func(models.SkinRecord) bool) []models.SkinRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SkinRecord
	for _, rec := range m.rows {
		if match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

func (m *memStore) FindByNickname(_ context.Context, nickname string) ([]models.SkinRecord, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	nickname = strings.ToLower(nickname)
	return m.filter(func(r models.SkinRecord) bool { return r.Nickname == nickname }), nil
}

func (m *memStore) FindByDisplayName(_ context.Context, name string) ([]models.SkinRecord, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	return m.filter(func(r models.SkinRecord) bool { return r.DefaultNick == name }), nil
}

func (m *memStore) Search(_ context.Context, fragment string, limit, offset int) ([]SearchHit, int64, error) {
	rows := m.filter(func(r models.SkinRecord) bool { return r.Valid && strings.Contains(r.Nickname, fragment) })
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DefaultNick < rows[j].DefaultNick })
	total := int64(len(rows))
	if offset >= len(rows) {
		return nil, total, nil
	}
	rows = rows[offset:min(len(rows), offset+limit)]
	hits := make([]SearchHit, len(rows))
	for i, r := range rows {
		hits[i] = SearchHit{UUID: r.UUID, DefaultNick: r.DefaultNick, Head: r.Head}
	}
	return hits, total, nil
}

func (m *memStore) Insert(_ context.Context, rec *models.SkinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[rec.UUID]; ok {
		return fmt.Errorf("%w: insert: UNIQUE constraint failed: skin_records.uuid", ErrStore)
	}
	m.inserts.Add(1)
	m.rows[rec.UUID] = *rec
	return nil
}

func (m *memStore) Update(_ context.Context, rec *models.SkinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[rec.UUID]; !ok {
		return fmt.Errorf("%w: update: %w", ErrStore, ErrMissingRecord)
	}
	m.updates.Add(1)
	m.rows[rec.UUID] = *rec
	return nil
}

func (m *memStore) Rename(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return nil
	}
	m.renames.Add(1)
	rec.DefaultNick = name
	rec.Nickname = strings.ToLower(name)
	m.rows[id] = rec
	return nil
}

func (m *memStore) SetValid(_ context.Context, id string, valid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.rows[id]; ok {
		rec.Valid = valid
		m.rows[id] = rec
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.rows, id)
	}
	return nil
}

func (m *memStore) DuplicateDisplayNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	counts := map[string]int{}
	for _, rec := range m.rows {
		if rec.Valid {
			counts[rec.DefaultNick]++
		}
	}
	m.mu.Unlock()
	var names []string
	for name, n := range counts {
		if n > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// fakeResolver answers from a table of accounts keyed by id.
type fakeResolver struct {
	mu       sync.Mutex
	accounts map[string]*mojang.Profile
	failures map[string]error
	calls    atomic.Int32
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{accounts: map[string]*mojang.Profile{}, failures: map[string]error{}}
}

func (f *fakeResolver) add(id, name string, cape bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &mojang.Profile{
		ID:        id,
		Name:      name,
		Timestamp: 1700000000000,
		Textures:  mojang.Textures{SkinURL: "https://textures.test/skin/" + id},
	}
	if cape {
		p.Textures.CapeURL = "https://textures.test/cape/" + id
	}
	f.accounts[id] = p
}

func (f *fakeResolver) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
}

func (f *fakeResolver) Resolve(_ context.Context, identifier string) (*mojang.Profile, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[identifier]; ok {
		return nil, err
	}
	if mojang.IsCanonicalID(identifier) {
		if p, ok := f.accounts[mojang.NormalizeID(identifier)]; ok {
			cp := *p
			return &cp, nil
		}
		return nil, mojang.ErrNotFound
	}
	for _, p := range f.accounts {
		if strings.EqualFold(p.Name, identifier) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, mojang.ErrNotFound
}

// fakeDownloader serves textures from memory. When gate is set, every call
// blocks until it is closed.
type fakeDownloader struct {
	mu      sync.Mutex
	files   map[string][]byte
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{files: map[string][]byte{}}
}

func (d *fakeDownloader) set(url string, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[url] = body
}

func (d *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	d.calls.Add(1)
	if d.started != nil {
		select {
		case d.started <- struct{}{}:
		default:
		}
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	body, ok := d.files[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: status 404", mojang.ErrUpstream, url)
	}
	return body, nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")
