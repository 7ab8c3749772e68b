package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"skillswap/internal/cache"
	"skillswap/internal/config"
	"skillswap/internal/email"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/repository"
	"skillswap/internal/service"
	"skillswap/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// outbox captures rendered emails instead of sending them.
// A non-nil err is returned after the message is captured.
type outbox struct {
	mu   sync.Mutex
	msgs []email.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return o.err
}

func (o *outbox) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.To)
	}
	return out
}

type testEnv struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	cfg    *config.Config
	fx     *testutil.SwapFixture
	tokens *middleware.JWTManager
	hub    *notifications.Hub
	fanout *service.Fanout
	outbox *outbox
	srv    *Server
	app    *fiber.App
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:                   "test",
		Port:                  "0",
		FrontendURL:           "http://localhost:5173",
		AllowedOrigins:        "http://localhost:5173",
		DBDriver:              "sqlite",
		JWTSecret:             "test-secret-that-is-at-least-32-chars",
		JWTIssuer:             "skillswap-api",
		JWTAudience:           "skillswap-app",
		JWTTTLHours:           1,
		UploadDir:             t.TempDir(),
		UploadMaxBytes:        service.DefaultAvatarMaxSize,
		RequestTimeoutSeconds: 5,
	}
}

type envOption func(*config.Config, *Deps)

func withJobs(j JobRunner) envOption {
	return func(_ *config.Config, d *Deps) { d.Jobs = j }
}

func withEnv(env string) envOption {
	return func(cfg *config.Config, _ *Deps) { cfg.Env = env }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	store := cache.NewStore(rdb)
	cfg := testConfig(t)

	fx := testutil.NewSwapFixture(t, db)
	// bob also wants Python so the fixture request passes ownership checks
	testutil.Want(t, db, fx.B, fx.Python)

	tokens := middleware.NewJWTManager(cfg)
	hub := notifications.NewHub(nil)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	dispatcher := notifications.NewDispatcher(hub, nil)

	box := &outbox{}
	fanout := service.NewFanout(dispatcher, email.NewService(box, email.MustRenderer(), cfg.FrontendURL), store)
	// drain deliveries before the database closes
	t.Cleanup(fanout.Wait)

	users := repository.NewUserRepository(db)
	swapRepo := repository.NewSwapRequestRepository(db)
	skillRepo := repository.NewSkillRepository(db)
	userSkills := repository.NewUserSkillRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	profiles := service.NewUserService(users, userSkills)
	auth := service.NewAuthService(users, tokens, fanout)

	deps := Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Tokens:     tokens,
		Hub:        hub,
		Realtime:   dispatcher,
		Users:      users,
		Auth:       auth,
		Profiles:   profiles,
		Avatars:    service.NewAvatarService(repository.NewUploadRepository(db), profiles, cfg),
		Skills:     service.NewSkillService(skillRepo, store),
		UserSkills: service.NewUserSkillService(userSkills, skillRepo, store),
		Swaps:      service.NewSwapService(swapRepo, users, skillRepo, userSkills, store, fanout),
		Feedback:   service.NewFeedbackService(feedbackRepo, swapRepo, store, fanout),
		Messages:   service.NewMessageService(repository.NewMessageRepository(db), swapRepo, store, fanout),
		Stats:      service.NewStatsService(users, swapRepo, feedbackRepo, skillRepo, store),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv, err := NewServer(deps)
	require.NoError(t, err)

	return &testEnv{
		db:     db,
		mr:     mr,
		cfg:    cfg,
		fx:     fx,
		tokens: tokens,
		hub:    hub,
		fanout: fanout,
		outbox: box,
		srv:    srv,
		app:    srv.App(),
	}
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := e.tokens.Issue(u.ID)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) makeAdmin(t *testing.T, u *models.User) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error)
}

func (e *testEnv) setPassword(t *testing.T, u *models.User, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", u.ID).Update("password", string(hash)).Error)
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (e *testEnv) createSwap(t *testing.T) models.SwapRequestWithParticipants {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/swap-requests", CreateSwapRequestBody{
		ReceiverID:       e.fx.B.ID,
		OfferedSkillID:   e.fx.Guitar.ID,
		RequestedSkillID: e.fx.Python.ID,
		Message:          "Guitar for Python?",
		PreferredTime:    "weekends",
	}, e.token(t, e.fx.A))
	require.Equal(t, http.StatusCreated, status, string(body))
	e.fanout.Wait()
	return decode[models.SwapRequestWithParticipants](t, body)
}
