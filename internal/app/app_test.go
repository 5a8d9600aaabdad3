package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"secrets-service/internal/auth"
	"secrets-service/internal/auth/credentials"
	"secrets-service/internal/auth/provider"
	"secrets-service/internal/config"
	"secrets-service/internal/identity"
	"secrets-service/internal/metrics"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGoogle struct{}

func (stubGoogle) Name() string { return "google" }

func (stubGoogle) AuthCodeURL(state string, _ string) string {
	return "https://accounts.test/auth?state=" + url.QueryEscape(state)
}

func (stubGoogle) ExchangeCode(_ context.Context, code string, _ string) (*auth.Profile, error) {
	if code != "ok" {
		return nil, auth.ProviderError("google", errors.New("bad code"))
	}
	return &auth.Profile{Provider: "google", ProviderUserID: "1234", DisplayName: "Bob"}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()

	public := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(public, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(public, "css", "styles.css"), []byte("body{}"), 0o644))

	return config.Config{
		AppEnv:                 "dev",
		PublicDir:              public,
		SessionIdleTimeout:     time.Hour,
		SessionAbsoluteTimeout: 2 * time.Hour,
		RequestTimeout:         5 * time.Second,
		LoginRateLimit:         10,
		LoginRateWindow:        time.Minute,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *identity.SQLiteStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := identity.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	router, err := newRouter(testConfig(t), services{
		identities: store,
		redis:      rdb,
		providers:  provider.NewRegistry(stubGoogle{}),
		metrics:    metrics.New(),
		hasher:     credentials.NewHasher(credentials.Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, store
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{
		t:    t,
		base: srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (int, string, string) {
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) post(path string, form url.Values) (int, string) {
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	_ = resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Location")
}

func TestSecretsScenario(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := newBrowser(t, srv)

	status, loc := alice.post("/register", url.Values{
		"username": {"alice"}, "email": {"alice@example.com"},
		"password": {"pw1"}, "confirmPass": {"pw1"},
	})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/secrets", loc)

	_, _, _ = alice.get("/logout")

	status, loc = alice.post("/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/secrets", loc)

	status, _, body := alice.get("/secrets")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "hello")

	status, _, body = alice.get("/submit")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `name="secret"`)

	status, loc = alice.post("/submit", url.Values{"secret": {"hello"}})
	require.Equal(t, http.StatusSeeOther, status)
	require.Equal(t, "/secrets", loc)

	status, _, body = alice.get("/secrets")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "hello")

	// any signed-in user sees every secret
	carol := newBrowser(t, srv)
	carol.post("/register", url.Values{"username": {"carol"}, "password": {"pw2"}})
	_, _, body = carol.get("/secrets")
	assert.Contains(t, body, "hello")
}

func TestProtectedRoutesRedirect(t *testing.T) {
	srv, store := newTestServer(t)
	anon := newBrowser(t, srv)

	for _, path := range []string{"/secrets", "/submit", "/logout"} {
		status, loc, body := anon.get(path)
		assert.Equal(t, http.StatusFound, status, path)
		assert.Equal(t, "/login", loc, path)
		assert.NotContains(t, body, "secret-text", path)
	}

	status, loc := anon.post("/submit", url.Values{"secret": {"sneaky"}})
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/login", loc)

	// a destroyed session is as good as none
	user := newBrowser(t, srv)
	user.post("/register", url.Values{"username": {"dave"}, "password": {"pw"}})
	_, _, _ = user.get("/logout")

	status, loc, _ = user.get("/submit")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login", loc)

	holders, err := store.ListSecretHolders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holders)
}

func TestConcurrentFirstFederatedLogin(t *testing.T) {
	srv, store := newTestServer(t)

	const n = 4
	var wg sync.WaitGroup
	browsers := make([]*browser, n)

	for i := range browsers {
		browsers[i] = newBrowser(t, srv)

		_, loc, _ := browsers[i].get("/auth/google")
		u, err := url.Parse(loc)
		require.NoError(t, err)
		state := u.Query().Get("state")
		require.NotEmpty(t, state)

		wg.Add(1)
		go func(b *browser, state string) {
			defer wg.Done()
			resp, err := b.client.Get(b.base + "/auth/google/secrets?code=ok&state=" + url.QueryEscape(state))
			if err == nil {
				_ = resp.Body.Close()
			}
		}(browsers[i], state)
	}
	wg.Wait()

	// every browser writes a secret; one identity means one holder
	for i, b := range browsers {
		status, loc := b.post("/submit", url.Values{"secret": {"from browser " + string(rune('A'+i))}})
		require.Equal(t, http.StatusSeeOther, status)
		require.Equal(t, "/secrets", loc)
	}

	holders, err := store.ListSecretHolders(context.Background())
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "Bob", holders[0].Username)
}

func TestLoginThrottleIgnoresForwardedFor(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t, srv).client

	form := url.Values{"username": {"alice"}, "password": {"guess"}}.Encode()

	var last int
	for i := 0; i < 11; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/login", strings.NewReader(form))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))

		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		last = resp.StatusCode
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestUntrustedProxyConfigRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.TrustedProxies = []string{"not-an-ip"}

	_, err := newRouter(cfg, services{metrics: metrics.New()})
	assert.Error(t, err)
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	b := newBrowser(t, srv)

	status, _, body := b.get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	b.post("/login", url.Values{"username": {"nobody"}, "password": {"x"}})

	status, _, body = b.get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `secrets_auth_attempts_total{method="local",outcome="rejected"} 1`)

	status, _, body = b.get("/css/styles.css")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body{}", body)

	status, _, body = b.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "/login")
}
