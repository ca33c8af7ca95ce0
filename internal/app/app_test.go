package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"canvas-gateway/internal/config"
	"canvas-gateway/internal/signature"
	"canvas-gateway/internal/signedrequest"
	"canvas-gateway/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := config.Load()
	c.AppID = "123456"
	c.AppSecret = "app-secret"
	c.CanvasPageURL = "https://apps.example.com/my-app/"
	c.SessionSecret = strings.Repeat("s", 32)
	c.EncryptionKey = "test-encryption-key"
	c.DatabaseType = "memory"
	c.WebhookVerifyTokens = "page-updates=xyz123"
	c.RedisAddress = ""
	c.ForwardRedisChannel = ""
	c.ForwardAMQPURL = ""
	c.ForwardSNSTopicARN = ""
	c.ForwardSQSQueueURL = ""
	c.ForwardKafkaBrokers = ""
	c.ForwardPubSubProjectID = ""
	c.ForwardPubSubTopic = ""
	return c
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func TestNew_WithoutRedis(t *testing.T) {
	app := newTestApp(t, testConfig())

	assert.Nil(t, app.RedisClient)
	assert.True(t, app.Limiter.Enabled())
	assert.Equal(t, "memory", app.Limiter.Backend())
	assert.Equal(t, 1, app.Dispatcher.Handlers())

	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, map[string]interface{}{"storage": "healthy"}, status["checks"])
}

func TestNew_SQLiteStorage(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseType = "sqlite"
	cfg.DatabasePath = ":memory:"

	app := newTestApp(t, cfg)
	assert.NoError(t, app.Storage.Health(context.Background()))
}

func TestRouter_CanvasFlow(t *testing.T) {
	app := newTestApp(t, testConfig())
	router := app.Router()

	token := signedrequest.Sign([]byte(`{"algorithm":"HMAC-SHA256","oauth_token":"tok","user_id":"1001"}`), []byte("app-secret"))
	form := url.Values{"signed_request": {token}}
	req := httptest.NewRequest(http.MethodPost, "/canvas", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	ids, err := app.Storage.FindUserIDsConnectedTo(context.Background(), "facebook", "1001")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	// the platform removes the app
	req = httptest.NewRequest(http.MethodPost, "/deauthorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ids, err = app.Storage.FindUserIDsConnectedTo(context.Background(), "facebook", "1001")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddress = mr.Addr()
	cfg.ForwardRedisChannel = "canvas-events"
	cfg.RateLimitEnabled = true
	cfg.RateLimitDefault = "2"

	app := newTestApp(t, cfg)
	require.NotNil(t, app.RedisClient)
	assert.True(t, app.Limiter.Enabled())
	assert.Equal(t, "redis", app.Limiter.Backend())
	assert.Equal(t, 2, app.Dispatcher.Handlers())

	router := app.Router()

	t.Run("events are forwarded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sub := app.RedisClient.Subscribe(ctx, "canvas-events")
		defer sub.Close()
		_, err := sub.Receive(ctx)
		require.NoError(t, err)

		body := `{"object":"page","entry":[{"id":"1234","time":1700000000,"changed_fields":["feed"]}]}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/page-updates", strings.NewReader(body))
		req.Header.Set(signature.HeaderSHA256, signature.SignSHA256([]byte(body), []byte("app-secret")))
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg.Payload, `"subscription":"page-updates"`)
	})

	t.Run("callbacks are rate limited", func(t *testing.T) {
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/canvas", nil)
			req.RemoteAddr = "198.51.100.7:5000"
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusFound, http.StatusFound, http.StatusTooManyRequests}, codes)

		// health is never limited
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestNew_UnreachableRedisIsOptional(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisAddress = addr

	cfg.RateLimitEnabled = false

	app := newTestApp(t, cfg)
	assert.Nil(t, app.RedisClient)
	assert.False(t, app.Limiter.Enabled())
}

func TestBackgroundJobs(t *testing.T) {
	t.Run("sweep runs under a redis lock", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.RedisAddress = mr.Addr()

		app := newTestApp(t, cfg)
		ctx := context.Background()

		user := &storage.User{DisplayName: "Ada"}
		require.NoError(t, app.Storage.CreateUser(ctx, user))
		past := time.Now().Add(-time.Minute)
		require.NoError(t, app.Storage.SaveConnection(ctx, &storage.Connection{
			UserID: user.ID, ProviderID: "facebook", ProviderUserID: "1001", AccessToken: "tok", ExpiresAt: &past,
		}))

		cleared, err := app.Sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, cleared)
		assert.False(t, mr.Exists("lock:token-sweep"), "lock released after the sweep")

		require.NoError(t, app.StartBackgroundJobs())
	})

	t.Run("disabled schedule", func(t *testing.T) {
		cfg := testConfig()
		cfg.SweepSchedule = "off"

		app := newTestApp(t, cfg)
		require.NoError(t, app.StartBackgroundJobs())
		// a stopped sweeper can still be started, so nothing was scheduled
		require.NoError(t, app.Sweeper.Start("@every 1h"))
	})
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SweepSchedule = "off"
	app := newTestApp(t, cfg)
	app.Config.Port = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
