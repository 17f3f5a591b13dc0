package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/andcoolsystems/eldraxis/internal/api"
	"github.com/andcoolsystems/eldraxis/internal/app"
	sharedtestutil "github.com/andcoolsystems/eldraxis/internal/database/testutil"
	"github.com/andcoolsystems/eldraxis/internal/monitoring"
	"github.com/andcoolsystems/eldraxis/internal/monitoring/checks"
	"github.com/andcoolsystems/eldraxis/internal/mojang"
	"github.com/andcoolsystems/eldraxis/internal/skins"
)

// PublicURL is the public base the test router advertises in profile links.
const PublicURL = "https://skins.test"

// Env encapsulates a fully-wired API instance backed by an in-memory database
// and a fake identity service.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Config   *app.Config
	Upstream *Upstream
	Store    *skins.GormStore
	Service  *skins.Service
	Router   *gin.Engine
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithConfig applies fn to the test configuration.
func WithConfig(fn func(*app.Config)) EnvOption {
	return func(cfg *app.Config) { fn(cfg) }
}

// NewEnv provisions a fresh handler test environment with the schema applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	upstream := NewUpstream(t)

	cfg := &app.Config{
		Server: app.ServerConfig{PublicURL: PublicURL},
		Skins:  app.SkinsConfig{SearchMinFragment: skins.DefaultSearchMinFragment, SearchMaxTake: skins.DefaultSearchMaxTake},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := mojang.NewClient(upstream.ClientConfig())
	require.NoError(t, err)

	store, err := skins.NewGormStore(db)
	require.NoError(t, err)

	service, err := skins.NewService(store, client, client)
	require.NoError(t, err)

	health := monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
	health.RegisterLiveness(monitoring.NewCheck("process", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(db))

	router, err := api.NewRouter(cfg, api.RouterDeps{
		Skins:  service,
		Search: skins.NewSearchIndex(store, cfg.Skins.SearchMinFragment, cfg.Skins.SearchMaxTake),
		Health: health,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Config:   cfg,
		Upstream: upstream,
		Store:    store,
		Service:  service,
		Router:   router,
	}
}

// Request executes an HTTP GET-style request against the test router.
func (e *Env) Request(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:41234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Get is shorthand for a GET request without extra headers.
func (e *Env) Get(path string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.Request(http.MethodGet, path, nil)
}

// DecodeJSON unmarshals the recorder body into a generic map.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// Upstream fakes the identity service's handle, profile and texture endpoints.
type Upstream struct {
	srv *httptest.Server

	mu       sync.Mutex
	handles  map[string]string
	profiles map[string]string
	textures map[string][]byte

	ProfileCalls atomic.Int32
	TextureCalls atomic.Int32
}

// NewUpstream starts the fake service; it is closed via t.Cleanup.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()
	u := &Upstream{
		handles:  map[string]string{},
		profiles: map[string]string{},
		textures: map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/users/profiles/minecraft/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/users/profiles/minecraft/")
		u.mu.Lock()
		id, ok := u.handles[strings.ToLower(name)]
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": name})
	})
	mux.HandleFunc("/session/minecraft/profile/", func(w http.ResponseWriter, r *http.Request) {
		u.ProfileCalls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/session/minecraft/profile/")
		u.mu.Lock()
		body, ok := u.profiles[id]
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/textures/", func(w http.ResponseWriter, r *http.Request) {
		u.TextureCalls.Add(1)
		u.mu.Lock()
		data, ok := u.textures[r.URL.Path]
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

// ClientConfig points an identity client at the fake service.
func (u *Upstream) ClientConfig() mojang.Config {
	return mojang.Config{
		ProfilesURL: u.srv.URL + "/users/profiles/minecraft/",
		SessionsURL: u.srv.URL + "/session/minecraft/profile/",
		Timeout:     2 * time.Second,
	}
}

// AddAccount registers an account whose skin is skin. A non-nil cape is
// served as the cape texture.
func (u *Upstream) AddAccount(id, name string, skin, cape []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	textures := map[string]any{
		"SKIN": map[string]any{"url": u.srv.URL + "/textures/skin-" + id},
	}
	u.textures["/textures/skin-"+id] = skin
	if cape != nil {
		textures["CAPE"] = map[string]any{"url": u.srv.URL + "/textures/cape-" + id}
		u.textures["/textures/cape-"+id] = cape
	}

	payload, _ := json.Marshal(map[string]any{
		"timestamp":   int64(1700000000000),
		"profileId":   id,
		"profileName": name,
		"textures":    textures,
	})
	body, _ := json.Marshal(map[string]any{
		"id":   id,
		"name": name,
		"properties": []map[string]string{
			{"name": "textures", "value": base64.StdEncoding.EncodeToString(payload)},
		},
	})

	for handle, owner := range u.handles {
		if owner == id {
			delete(u.handles, handle)
		}
	}
	u.handles[strings.ToLower(name)] = id
	u.profiles[id] = string(body)
}

// SkinPNG renders a 64x64 skin sheet filled with fill in the head region.
func SkinPNG(t *testing.T, fill color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
