package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"
)

type push struct {
	UserID uint
	RoomID uint
	Event  string
	Data   interface{}
}

type fakeRealtime struct {
	mu     sync.Mutex
	pushes []push
	online map[uint]bool
	rooms  map[uint][]uint
	err    error
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{online: map[uint]bool{}, rooms: map[uint][]uint{}}
}

func (f *fakeRealtime) NotifyUser(_ context.Context, userID uint, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushes = append(f.pushes, push{UserID: userID, Event: eventType, Data: payload})
	return nil
}

func (f *fakeRealtime) NotifyRoom(_ context.Context, swapID uint, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushes = append(f.pushes, push{RoomID: swapID, Event: eventType, Data: payload})
	return nil
}

func (f *fakeRealtime) IsOnline(_ context.Context, userID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakeRealtime) InRoom(swapID, userID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.rooms[swapID], userID)
}

func (f *fakeRealtime) join(swapID, userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[swapID] = append(f.rooms[swapID], userID)
}

func (f *fakeRealtime) setOnline(userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
}

func (f *fakeRealtime) userPushes(userID uint) []push {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []push
	for _, p := range f.pushes {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeRealtime) roomPushes(swapID uint) []push {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []push
	for _, p := range f.pushes {
		if p.RoomID == swapID {
			out = append(out, p)
		}
	}
	return out
}

// fakeMailer records one "<method>:<recipient email>" entry per delivery.
type fakeMailer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *fakeMailer) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *fakeMailer) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *fakeMailer) SendWelcome(_ context.Context, user models.User) error {
	return m.record("welcome:" + user.Email)
}

func (m *fakeMailer) SendSwapRequest(_ context.Context, swap models.SwapRequest) error {
	return m.record("swap_request:" + swap.Receiver.Email)
}

func (m *fakeMailer) SendStatusUpdate(_ context.Context, recipient, _ models.User, swap models.SwapRequest) error {
	return m.record(fmt.Sprintf("status_%s:%s", swap.Status, recipient.Email))
}

func (m *fakeMailer) SendNewMessage(_ context.Context, recipient, _ models.User, _ string, _ uint) error {
	return m.record("message:" + recipient.Email)
}

func (m *fakeMailer) SendFeedbackReminder(_ context.Context, recipient, _ models.User, _ uint) error {
	return m.record("feedback_reminder:" + recipient.Email)
}

func (m *fakeMailer) SendWeeklyDigest(_ context.Context, user models.User, _ models.DigestStats) error {
	return m.record("digest:" + user.Email)
}

type harness struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	store    *cache.Store
	fx       *testutil.SwapFixture
	realtime *fakeRealtime
	mailer   *fakeMailer
	fanout   *Fanout

	users      repository.UserRepository
	swapRepo   repository.SwapRequestRepository
	skillRepo  repository.SkillRepository
	userSkills repository.UserSkillRepository

	swaps    *SwapService
	messages *MessageService
	feedback *FeedbackService
	skills   *SkillService
	stats    *StatsService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	store := cache.NewStore(rdb)

	fx := testutil.NewSwapFixture(t, db)
	// bob also wants Python so the fixture request passes ownership checks
	testutil.Want(t, db, fx.B, fx.Python)

	h := &harness{
		db:         db,
		mr:         mr,
		store:      store,
		fx:         fx,
		realtime:   newFakeRealtime(),
		mailer:     &fakeMailer{},
		users:      repository.NewUserRepository(db),
		swapRepo:   repository.NewSwapRequestRepository(db),
		skillRepo:  repository.NewSkillRepository(db),
		userSkills: repository.NewUserSkillRepository(db),
	}
	h.fanout = NewFanout(h.realtime, h.mailer, store)

	feedbackRepo := repository.NewFeedbackRepository(db)
	h.swaps = NewSwapService(h.swapRepo, h.users, h.skillRepo, h.userSkills, store, h.fanout)
	h.messages = NewMessageService(repository.NewMessageRepository(db), h.swapRepo, store, h.fanout)
	h.feedback = NewFeedbackService(feedbackRepo, h.swapRepo, store, h.fanout)
	h.skills = NewSkillService(h.skillRepo, store)
	h.stats = NewStatsService(h.users, h.swapRepo, feedbackRepo, h.skillRepo, store)
	return h
}

func (h *harness) createSwap(t *testing.T) *models.SwapRequestWithParticipants {
	t.Helper()
	swap, err := h.swaps.Create(context.Background(), CreateSwapRequestInput{
		RequesterID:      h.fx.A.ID,
		ReceiverID:       h.fx.B.ID,
		OfferedSkillID:   h.fx.Guitar.ID,
		RequestedSkillID: h.fx.Python.ID,
		Message:          "Guitar lessons for Python help?",
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	h.fanout.Wait()
	return swap
}

func errCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
