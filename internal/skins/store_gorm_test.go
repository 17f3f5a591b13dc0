package skins

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/andcoolsystems/eldraxis/internal/database/testutil"
	"github.com/andcoolsystems/eldraxis/internal/models"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return store
}

func record(id, name string, expires time.Time) *models.SkinRecord {
	return &models.SkinRecord{
		UUID:        id,
		Nickname:    strings.ToLower(name),
		DefaultNick: name,
		ExpiresAt:   expires,
		Skin:        []byte("skin-" + id),
		Head:        []byte("head-" + id),
		Valid:       true,
	}
}

func TestGormStoreInsertFindUpdate(t *testing.T) {
	store := newGormStore(t)
	ctx := context.Background()
	expires := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

	missing, err := store.FindByID(ctx, notchID)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.Insert(ctx, record(notchID, "Notch", expires)))

	err = store.Insert(ctx, record(notchID, "Notch", expires))
	require.ErrorIs(t, err, ErrStore)
	require.True(t, isUniqueConstraintError(err))

	got, err := store.FindByID(ctx, notchID)
	require.NoError(t, err)
	require.Equal(t, "Notch", got.DefaultNick)
	require.True(t, got.ExpiresAt.Equal(expires))

	updated := record(notchID, "Notch", expires.Add(time.Hour))
	updated.Cape = []byte("cape")
	updated.Valid = true
	require.NoError(t, store.Update(ctx, updated))

	got, err = store.FindByID(ctx, notchID)
	require.NoError(t, err)
	require.Equal(t, []byte("cape"), got.Cape)
	require.True(t, got.ExpiresAt.Equal(expires.Add(time.Hour)))

	err = store.Update(ctx, record(jebID, "jeb_", expires))
	require.ErrorIs(t, err, ErrMissingRecord)
}

func TestGormStoreNameLookups(t *testing.T) {
	store := newGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, record(notchID, "Notch", now.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, record(jebID, "Notch", now.Add(2*time.Hour))))

	byNick, err := store.FindByNickname(ctx, "NOTCH")
	require.NoError(t, err)
	require.Len(t, byNick, 2)
	require.Equal(t, jebID, byNick[0].UUID, "latest expiry first")

	byName, err := store.FindByDisplayName(ctx, "Notch")
	require.NoError(t, err)
	require.Len(t, byName, 2)

	dups, err := store.DuplicateDisplayNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Notch"}, dups)

	require.NoError(t, store.Rename(ctx, notchID, "Notch_Old"))
	renamed, err := store.FindByID(ctx, notchID)
	require.NoError(t, err)
	require.Equal(t, "notch_old", renamed.Nickname)
	require.Equal(t, []byte("skin-"+notchID), renamed.Skin)

	require.NoError(t, store.SetValid(ctx, jebID, false))
	dups, err = store.DuplicateDisplayNames(ctx)
	require.NoError(t, err)
	require.Empty(t, dups)

	require.NoError(t, store.Delete(ctx, notchID, jebID))
	require.NoError(t, store.Delete(ctx))
	gone, err := store.FindByID(ctx, notchID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestGormStoreSearch(t *testing.T) {
	store := newGormStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Add(time.Hour)

	for _, rec := range []*models.SkinRecord{
		record(notchID, "Notch", now),
		record(jebID, "notch_fan", now),
		record(dinnerID, "Dinnerbone", now),
		record("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "notchXfan", now),
	} {
		require.NoError(t, store.Insert(ctx, rec))
	}
	require.NoError(t, store.SetValid(ctx, dinnerID, false))

	hits, total, err := store.Search(ctx, "notch", 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Equal(t, "Notch", hits[0].DefaultNick)
	require.Equal(t, []byte("head-"+notchID), hits[0].Head)

	// underscore is literal, not a wildcard
	hits, total, err = store.Search(ctx, "h_f", 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, jebID, hits[0].UUID)

	hits, total, err = store.Search(ctx, "notch", 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, hits, 1)

	hits, total, err = store.Search(ctx, "dinner", 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, hits)
}

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, isUniqueConstraintError(nil))
	require.False(t, isUniqueConstraintError(errors.New("connection refused")))
	require.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	require.True(t, isUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: skin_records.uuid")))
}

func TestServiceAgainstGormStore(t *testing.T) {
	store := newGormStore(t)
	resolver := newFakeResolver()
	resolver.add(notchID, "Notch", true)
	dl := newFakeDownloader()
	skin := makeSkin(t, nil)
	dl.set("https://textures.test/skin/"+notchID, skin)
	dl.set("https://textures.test/cape/"+notchID, []byte("cape"))

	svc, err := NewService(store, resolver, dl)
	require.NoError(t, err)

	res, err := svc.GetOrRefresh(context.Background(), Request{Identifier: "Notch", WantCape: true})
	require.NoError(t, err)
	require.Equal(t, skin, res.Skin)

	calls := resolver.calls.Load()
	res, err = svc.GetOrRefresh(context.Background(), Request{Identifier: "notch"})
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
	require.Equal(t, []byte("cape"), res.Cape)
	require.Equal(t, calls, resolver.calls.Load())

	page, err := NewSearchIndex(store, 3, 100).Search(context.Background(), "otc", 20, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}
