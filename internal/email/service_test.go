package email

import (
	"context"
	"errors"
	"sync"
	"testing"

	"skillswap/internal/config"
	"skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingSender) {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	sender := &recordingSender{}
	return NewService(sender, r, "https://skillswap.test"), sender
}

func testSwap(status models.SwapStatus) models.SwapRequest {
	return models.SwapRequest{
		ID:             42,
		Status:         status,
		Message:        "Lessons on weekends?",
		Requester:      models.User{ID: 1, Username: "alice", FirstName: "Alice", Email: "alice@example.com"},
		Receiver:       models.User{ID: 2, Username: "bob", Email: "bob@example.com"},
		OfferedSkill:   models.Skill{Name: "Guitar"},
		RequestedSkill: models.Skill{Name: "Python"},
	}
}

func TestService_SendSwapRequest(t *testing.T) {
	svc, sender := newTestService(t)
	require.NoError(t, svc.SendSwapRequest(context.Background(), testSwap(models.SwapStatusPending)))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "New skill swap request from Alice", msg.Subject)
	assert.Contains(t, msg.HTML, "SkillSwap Platform")
	assert.Contains(t, msg.HTML, "Guitar")
	assert.Contains(t, msg.HTML, "Python")
	assert.Contains(t, msg.HTML, "Lessons on weekends?")
	assert.Contains(t, msg.HTML, `href="https://skillswap.test/swaps"`)
}

func TestService_SendStatusUpdate(t *testing.T) {
	tests := []struct {
		status  models.SwapStatus
		subject string
		lead    string
	}{
		{models.SwapStatusAccepted, "Your skill swap request was accepted!", "Great news! bob has accepted"},
		{models.SwapStatusRejected, "Skill swap request update", "bob has declined"},
		{models.SwapStatusCompleted, "Skill swap completed!", "marked as completed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			svc, sender := newTestService(t)
			swap := testSwap(tt.status)
			require.NoError(t, svc.SendStatusUpdate(context.Background(), swap.Requester, swap.Receiver, swap))

			require.Len(t, sender.sent, 1)
			assert.Equal(t, "alice@example.com", sender.sent[0].To)
			assert.Equal(t, tt.subject, sender.sent[0].Subject)
			assert.Contains(t, sender.sent[0].HTML, tt.lead)
		})
	}

	t.Run("pending sends nothing", func(t *testing.T) {
		svc, sender := newTestService(t)
		swap := testSwap(models.SwapStatusPending)
		require.NoError(t, svc.SendStatusUpdate(context.Background(), swap.Requester, swap.Receiver, swap))
		assert.Empty(t, sender.sent)
	})
}

func TestService_OtherTemplates(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()
	alice := models.User{ID: 1, Username: "alice", FirstName: "Alice", Email: "alice@example.com"}
	bob := models.User{ID: 2, Username: "bob", Email: "bob@example.com", Title: "Developer"}

	require.NoError(t, svc.SendWelcome(ctx, alice))
	require.NoError(t, svc.SendNewMessage(ctx, bob, alice, "see you <b>soon</b>", 42))
	require.NoError(t, svc.SendFeedbackReminder(ctx, alice, bob, 42))
	require.NoError(t, svc.SendWeeklyDigest(ctx, alice, models.DigestStats{
		NewSwapRequests: 3, CompletedSwaps: 1, NewSkills: 7,
		SuggestedUsers: []models.User{bob, {Username: "carol"}},
	}))

	require.Len(t, sender.sent, 4)

	assert.Equal(t, "Welcome to SkillSwap Platform!", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "Welcome to SkillSwap, Alice!")
	assert.Contains(t, sender.sent[0].HTML, "https://skillswap.test/profile")

	assert.Equal(t, "New message from Alice", sender.sent[1].Subject)
	assert.Contains(t, sender.sent[1].HTML, "&lt;b&gt;soon&lt;/b&gt;", "content is escaped")
	assert.Contains(t, sender.sent[1].HTML, "https://skillswap.test/swaps/42")

	assert.Equal(t, "Please leave feedback for your recent skill swap", sender.sent[2].Subject)
	assert.Contains(t, sender.sent[2].HTML, "https://skillswap.test/swaps/42/feedback")

	digest := sender.sent[3]
	assert.Equal(t, "Your weekly SkillSwap digest", digest.Subject)
	assert.Contains(t, digest.HTML, "3 new swap requests")
	assert.Contains(t, digest.HTML, "7 new skills added")
	assert.Contains(t, digest.HTML, "bob</strong> - Developer")
	assert.Contains(t, digest.HTML, "carol</strong> - Skill swapper")
}

func TestService_SkipsMissingAddressAndWrapsErrors(t *testing.T) {
	svc, sender := newTestService(t)
	require.NoError(t, svc.SendWelcome(context.Background(), models.User{Username: "ghost"}))
	assert.Empty(t, sender.sent)

	sender.err = errors.New("connection refused")
	err := svc.SendWelcome(context.Background(), models.User{ID: 5, Username: "u", Email: "u@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sender.err)
}

func TestPlainText(t *testing.T) {
	r := MustRenderer()
	body, err := r.Render(TemplateFeedbackReminder, map[string]interface{}{
		"OtherName": "Bob", "FrontendURL": "", "SwapRequestID": 3,
	})
	require.NoError(t, err)

	text := PlainText(body)
	assert.NotContains(t, text, "<")
	assert.NotContains(t, text, "font-family")
	assert.Contains(t, text, "You recently completed a skill swap with Bob.")
	assert.Contains(t, text, "Don't Forget to Leave Feedback!")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	_, err := MustRenderer().Render("nope", nil)
	assert.Error(t, err)
}

func TestNewSender_FallsBackToLog(t *testing.T) {
	s, err := NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "hi"}))

	s, err = NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPUser: "u", SMTPPass: "p", SMTPFrom: "u@example.com"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)
}
