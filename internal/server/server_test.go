package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skillswap/internal/jobs"
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, status)
	ready := decode[map[string]interface{}](t, body)
	assert.Equal(t, "healthy", ready["status"])

	env.mr.Close()
	status, body = env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, status, "redis outage degrades but stays ready")
	ready = decode[map[string]interface{}](t, body)
	assert.Equal(t, "degraded", ready["status"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	signup := SignupRequest{
		Username:  "dave_k",
		Email:     "Dave@Example.com",
		Password:  "secret123",
		FirstName: "Dave",
	}
	status, body := env.do(t, http.MethodPost, "/api/auth/signup", signup, "")
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[service.AuthResult](t, body)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, "dave@example.com", created.User.Email)
	assert.NotContains(t, string(body), "secret123")

	env.fanout.Wait()
	assert.Contains(t, env.outbox.recipients(), "dave@example.com")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		dup := signup
		dup.Username = "dave_two"
		status, body := env.do(t, http.MethodPost, "/api/auth/signup", dup, "")
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, body).Code)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		weak := SignupRequest{Username: "erin", Email: "erin@example.com", Password: "short"}
		status, body := env.do(t, http.MethodPost, "/api/auth/signup", weak, "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, body).Code)
	})

	t.Run("login", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/api/auth/login",
			LoginRequest{Email: "dave@example.com", Password: "secret123"}, "")
		require.Equal(t, http.StatusOK, status, string(body))
		assert.NotEmpty(t, decode[service.AuthResult](t, body).Token)

		status, _ = env.do(t, http.MethodPost, "/api/auth/login",
			LoginRequest{Email: "dave@example.com", Password: "wrong1234"}, "")
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = env.do(t, http.MethodPost, "/api/auth/login",
			LoginRequest{Email: "nobody@example.com", Password: "secret123"}, "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("current user", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/auth/user", nil, created.Token)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "dave_k", decode[models.User](t, body).Username)

		status, _ = env.do(t, http.MethodGet, "/api/auth/user", nil, "")
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = env.do(t, http.MethodGet, "/api/auth/user", nil, "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestSwapRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.token(t, env.fx.A), env.token(t, env.fx.B), env.token(t, env.fx.C)

	swap := env.createSwap(t)
	assert.Equal(t, models.SwapStatusPending, swap.Status)
	assert.Equal(t, "alice", swap.Requester.Username)
	assert.Equal(t, "Python", swap.RequestedSkill.Name)
	assert.Contains(t, env.outbox.recipients(), "bob@example.com")

	statusPath := fmt.Sprintf("/api/swap-requests/%d/status", swap.ID)

	t.Run("requester cannot accept", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "accepted"}, alice)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("pending cannot complete", func(t *testing.T) {
		status, body := env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "completed"}, bob)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, models.CodeInvalidTransition, decode[models.ErrorResponse](t, body).Code)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "archived"}, bob)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("outsider cannot read", func(t *testing.T) {
		status, _ := env.do(t, http.MethodGet, fmt.Sprintf("/api/swap-requests/%d", swap.ID), nil, carol)
		assert.Equal(t, http.StatusForbidden, status)
	})

	status, body := env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "accepted"}, bob)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.SwapStatusAccepted, decode[models.SwapRequestWithParticipants](t, body).Status)

	status, _ = env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "rejected"}, bob)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "accepted is past the receiver's decision")

	status, body = env.do(t, http.MethodPatch, statusPath, UpdateSwapStatusBody{Status: "completed"}, alice)
	require.Equal(t, http.StatusOK, status, string(body))
	env.fanout.Wait()

	t.Run("listing filters by status", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/swap-requests?status=completed", nil, bob)
		require.Equal(t, http.StatusOK, status)
		list := decode[[]models.SwapRequestWithParticipants](t, body)
		require.Len(t, list, 1)
		assert.Equal(t, swap.ID, list[0].ID)

		status, body = env.do(t, http.MethodGet, "/api/swap-requests?status=pending", nil, bob)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, decode[[]models.SwapRequestWithParticipants](t, body))

		status, _ = env.do(t, http.MethodGet, "/api/swap-requests?status=bogus", nil, bob)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("feedback", func(t *testing.T) {
		req := CreateFeedbackRequest{SwapRequestID: swap.ID, RevieweeID: env.fx.B.ID, Rating: 5, Comment: "Patient and clear"}
		status, body := env.do(t, http.MethodPost, "/api/feedback", req, alice)
		require.Equal(t, http.StatusCreated, status, string(body))
		fb := decode[models.FeedbackWithReviewer](t, body)
		assert.Equal(t, 5, fb.Rating)
		assert.Equal(t, "alice", fb.Reviewer.Username)

		status, _ = env.do(t, http.MethodPost, "/api/feedback", req, alice)
		assert.Equal(t, http.StatusConflict, status)

		status, _ = env.do(t, http.MethodPost, "/api/feedback", req, carol)
		assert.Equal(t, http.StatusForbidden, status)

		bad := req
		bad.Rating = 6
		status, _ = env.do(t, http.MethodPost, "/api/feedback", bad, bob)
		assert.Equal(t, http.StatusBadRequest, status)

		status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/feedback", env.fx.B.ID), nil, "")
		require.Equal(t, http.StatusOK, status)
		list := decode[[]models.FeedbackWithReviewer](t, body)
		require.Len(t, list, 1)
		assert.Equal(t, "Patient and clear", list[0].Comment)
	})
}

func TestSwapRequestSurvivesMailOutage(t *testing.T) {
	env := newTestEnv(t)
	env.outbox.fail(errors.New("smtp down"))

	swap := env.createSwap(t)
	assert.Equal(t, models.SwapStatusPending, swap.Status)

	status, body := env.do(t, http.MethodPatch, fmt.Sprintf("/api/swap-requests/%d/status", swap.ID),
		UpdateSwapStatusBody{Status: "accepted"}, env.token(t, env.fx.B))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.SwapStatusAccepted, decode[models.SwapRequestWithParticipants](t, body).Status)
	env.fanout.Wait()

	status, body = env.do(t, http.MethodGet, "/api/swap-requests?status=accepted", nil, env.token(t, env.fx.A))
	require.Equal(t, http.StatusOK, status)
	list := decode[[]models.SwapRequestWithParticipants](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, swap.ID, list[0].ID)
	assert.Contains(t, env.outbox.recipients(), "alice@example.com", "delivery was attempted")
}

func TestCreateSwapRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, env.fx.A)

	tests := []struct {
		name   string
		body   CreateSwapRequestBody
		status int
	}{
		{"to self", CreateSwapRequestBody{ReceiverID: env.fx.A.ID, OfferedSkillID: env.fx.Guitar.ID, RequestedSkillID: env.fx.Python.ID}, http.StatusBadRequest},
		{"skill not offered", CreateSwapRequestBody{ReceiverID: env.fx.B.ID, OfferedSkillID: env.fx.Python.ID, RequestedSkillID: env.fx.Python.ID}, http.StatusBadRequest},
		{"skill not wanted by receiver", CreateSwapRequestBody{ReceiverID: env.fx.C.ID, OfferedSkillID: env.fx.Guitar.ID, RequestedSkillID: env.fx.Python.ID}, http.StatusBadRequest},
		{"unknown receiver", CreateSwapRequestBody{ReceiverID: 9999, OfferedSkillID: env.fx.Guitar.ID, RequestedSkillID: env.fx.Python.ID}, http.StatusNotFound},
		{"missing fields", CreateSwapRequestBody{ReceiverID: env.fx.B.ID}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/swap-requests", tt.body, alice)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	status, _ := env.do(t, http.MethodPost, "/api/swap-requests", tests[0].body, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSwapMessages(t *testing.T) {
	env := newTestEnv(t)
	alice, bob, carol := env.token(t, env.fx.A), env.token(t, env.fx.B), env.token(t, env.fx.C)
	swap := env.createSwap(t)

	status, body := env.do(t, http.MethodPost, "/api/messages",
		SendMessageRequest{SwapRequestID: swap.ID, Content: "  When suits you?  "}, alice)
	require.Equal(t, http.StatusCreated, status, string(body))
	msg := decode[models.MessageWithSender](t, body)
	assert.Equal(t, "When suits you?", msg.Content)
	assert.Equal(t, "alice", msg.Sender.Username)

	env.fanout.Wait()
	// bob has no socket so the message is mailed
	recipients := env.outbox.recipients()
	assert.Equal(t, "bob@example.com", recipients[len(recipients)-1])

	status, _ = env.do(t, http.MethodPost, "/api/messages", SendMessageRequest{SwapRequestID: swap.ID, Content: "hi"}, carol)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, "/api/messages", SendMessageRequest{SwapRequestID: swap.ID, Content: "   "}, alice)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/swap-requests/%d/messages", swap.ID), nil, bob)
	require.Equal(t, http.StatusOK, status)
	thread := decode[[]models.MessageWithSender](t, body)
	require.Len(t, thread, 1)
	assert.Equal(t, msg.ID, thread[0].ID)

	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/swap-requests/%d/messages", swap.ID), nil, carol)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSkillCatalogue(t *testing.T) {
	env := newTestEnv(t)
	carol := env.token(t, env.fx.C)

	status, body := env.do(t, http.MethodGet, "/api/skills", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Skill](t, body), 2)

	status, body = env.do(t, http.MethodPost, "/api/skills", CreateSkillRequest{Name: "Pottery", Category: "Crafts"}, carol)
	require.Equal(t, http.StatusCreated, status, string(body))
	pottery := decode[models.Skill](t, body)

	status, _ = env.do(t, http.MethodPost, "/api/skills", CreateSkillRequest{Name: "Pottery", Category: "Crafts"}, carol)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/api/skills", CreateSkillRequest{Name: "Knitting", Category: "Crafts"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodGet, "/api/skills", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Skill](t, body), 3, "create invalidates the cached catalogue")

	status, body = env.do(t, http.MethodGet, "/api/skills/search?q=pot", nil, "")
	require.Equal(t, http.StatusOK, status)
	found := decode[[]models.Skill](t, body)
	require.Len(t, found, 1)
	assert.Equal(t, pottery.ID, found[0].ID)

	t.Run("offered and wanted lists", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/user/skills/offered", nil, carol)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "[]", strings.TrimSpace(string(body)))

		status, body = env.do(t, http.MethodPost, "/api/user/skills/offered",
			AddOfferedSkillRequest{SkillID: pottery.ID, ProficiencyLevel: "expert"}, carol)
		require.Equal(t, http.StatusCreated, status, string(body))
		entry := decode[models.UserSkillOffered](t, body)
		assert.Equal(t, models.ProficiencyLevel("expert"), entry.ProficiencyLevel)
		assert.Equal(t, "Pottery", entry.Skill.Name)

		status, _ = env.do(t, http.MethodPost, "/api/user/skills/offered",
			AddOfferedSkillRequest{SkillID: pottery.ID}, carol)
		assert.Equal(t, http.StatusConflict, status)

		status, _ = env.do(t, http.MethodPost, "/api/user/skills/wanted",
			AddWantedSkillRequest{SkillID: env.fx.Guitar.ID, Urgency: "urgent"}, carol)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = env.do(t, http.MethodPost, "/api/user/skills/wanted",
			AddWantedSkillRequest{SkillID: env.fx.Guitar.ID, Urgency: "high"}, carol)
		assert.Equal(t, http.StatusCreated, status)

		status, body = env.do(t, http.MethodGet, "/api/user/skills/wanted", nil, carol)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]models.UserSkillWanted](t, body), 1)

		path := fmt.Sprintf("/api/user/skills/offered/%d", pottery.ID)
		status, _ = env.do(t, http.MethodDelete, path, nil, carol)
		assert.Equal(t, http.StatusNoContent, status)
		status, _ = env.do(t, http.MethodDelete, path, nil, carol)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestBrowseUsers(t *testing.T) {
	env := newTestEnv(t)
	carol := env.token(t, env.fx.C)

	status, body := env.do(t, http.MethodGet, "/api/users/browse", nil, carol)
	require.Equal(t, http.StatusOK, status)
	all := decode[[]models.UserWithSkills](t, body)
	require.Len(t, all, 2, "the caller is excluded")
	for _, u := range all {
		assert.NotEqual(t, env.fx.C.ID, u.ID)
		assert.NotContains(t, string(body), "@example.com", "emails stay private")
	}

	status, body = env.do(t, http.MethodGet, "/api/users/browse?skill=guitar", nil, carol)
	require.Equal(t, http.StatusOK, status)
	bySkill := decode[[]models.UserWithSkills](t, body)
	require.Len(t, bySkill, 1)
	assert.Equal(t, "alice", bySkill[0].Username)
	require.Len(t, bySkill[0].SkillsOffered, 1)
	assert.Equal(t, "Guitar", bySkill[0].SkillsOffered[0].Skill.Name)

	status, body = env.do(t, http.MethodGet, "/api/users/browse?availability=evenings,%20mornings", nil, carol)
	require.Equal(t, http.StatusOK, status)
	byAvail := decode[[]models.UserWithSkills](t, body)
	require.Len(t, byAvail, 1)
	assert.Equal(t, "bob", byAvail[0].Username)

	status, _ = env.do(t, http.MethodGet, "/api/users/browse", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProfileAndAvatar(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, env.fx.A)

	location := "Lisbon"
	status, body := env.do(t, http.MethodPatch, "/api/users/me", UpdateProfileRequest{
		Location:     &location,
		Availability: []string{"Weekends", "weekends", "mornings"},
	}, alice)
	require.Equal(t, http.StatusOK, status, string(body))
	user := decode[models.User](t, body)
	assert.Equal(t, "Lisbon", user.Location)
	assert.Equal(t, []string{"weekends", "mornings"}, []string(user.Availability))

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: 200, A: 255})
		}
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	upload := func(t *testing.T, field string, content []byte) (int, []byte) {
		var form bytes.Buffer
		w := multipart.NewWriter(&form)
		part, err := w.CreateFormFile(field, "avatar.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/users/me/avatar", &form)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice)
		return env.send(t, req)
	}

	status, body = upload(t, "image", pngBuf.Bytes())
	require.Equal(t, http.StatusOK, status, string(body))
	user = decode[models.User](t, body)
	require.True(t, strings.HasPrefix(user.ProfileImageURL, service.UploadURLPrefix+"/"), user.ProfileImageURL)
	assert.True(t, strings.HasSuffix(user.ProfileImageURL, ".webp"))

	status, served := env.do(t, http.MethodGet, user.ProfileImageURL, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, served)

	status, _ = upload(t, "image", []byte("plain text is not an image"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = upload(t, "file", pngBuf.Bytes())
	assert.Equal(t, http.StatusBadRequest, status)
}

// stubJobs is a JobRunner with canned outcomes.
type stubJobs struct {
	ran []string
}

func (s *stubJobs) Status() []jobs.JobStatus {
	return []jobs.JobStatus{{Name: "refresh_stats", Schedule: "@hourly"}}
}

func (s *stubJobs) RunJob(_ context.Context, name string) error {
	switch name {
	case "refresh_stats":
		s.ran = append(s.ran, name)
		return nil
	case "broken":
		return errors.New("smtp unreachable")
	default:
		return fmt.Errorf("%w: %s", jobs.ErrUnknownJob, name)
	}
}

func TestAdminRoutes(t *testing.T) {
	runner := &stubJobs{}
	env := newTestEnv(t, withJobs(runner))
	env.makeAdmin(t, env.fx.A)
	admin, bob := env.token(t, env.fx.A), env.token(t, env.fx.B)

	for _, path := range []string{"/api/admin/stats", "/api/admin/users", "/api/admin/jobs", "/api/admin/feature-flags"} {
		status, _ := env.do(t, http.MethodGet, path, nil, bob)
		assert.Equal(t, http.StatusForbidden, status, path)
	}

	env.fx.CreateSwap(t, env.db, models.SwapStatusPending)

	t.Run("stats", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/admin/stats", nil, admin)
		require.Equal(t, http.StatusOK, status, string(body))
		stats := decode[models.PlatformStats](t, body)
		assert.Equal(t, int64(3), stats.TotalUsers)
		assert.Equal(t, int64(1), stats.TotalSwaps)
		assert.Equal(t, int64(1), stats.SwapsByStatus[models.SwapStatusPending])
	})

	t.Run("users", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/admin/users?limit=2", nil, admin)
		require.Equal(t, http.StatusOK, status)
		page := decode[AdminUsersResponse](t, body)
		assert.Equal(t, int64(3), page.Total)
		assert.Len(t, page.Users, 2)
		assert.Equal(t, 2, page.Limit)
	})

	t.Run("admin status", func(t *testing.T) {
		yes, no := true, false
		status, body := env.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", env.fx.B.ID),
			UpdateAdminStatusRequest{IsAdmin: &yes}, admin)
		require.Equal(t, http.StatusOK, status, string(body))
		assert.True(t, decode[models.User](t, body).IsAdmin)

		status, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", env.fx.A.ID),
			UpdateAdminStatusRequest{IsAdmin: &no}, admin)
		assert.Equal(t, http.StatusBadRequest, status, "admins cannot revoke themselves")

		status, _ = env.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", env.fx.B.ID),
			map[string]interface{}{}, admin)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = env.do(t, http.MethodPatch, "/api/admin/users/9999/status",
			UpdateAdminStatusRequest{IsAdmin: &yes}, admin)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("jobs", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/admin/jobs", nil, admin)
		require.Equal(t, http.StatusOK, status)
		list := decode[[]jobs.JobStatus](t, body)
		require.Len(t, list, 1)
		assert.Equal(t, "refresh_stats", list[0].Name)

		status, body = env.do(t, http.MethodPost, "/api/admin/jobs/refresh_stats/run", nil, admin)
		require.Equal(t, http.StatusOK, status, string(body))
		assert.Equal(t, []string{"refresh_stats"}, runner.ran)

		status, body = env.do(t, http.MethodPost, "/api/admin/jobs/broken/run", nil, admin)
		assert.Equal(t, http.StatusInternalServerError, status)
		failed := decode[models.ErrorResponse](t, body)
		assert.Equal(t, models.CodeInternal, failed.Code)
		assert.NotContains(t, string(body), "smtp unreachable")

		status, _ = env.do(t, http.MethodPost, "/api/admin/jobs/nope/run", nil, admin)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("feature flags", func(t *testing.T) {
		status, body := env.do(t, http.MethodGet, "/api/admin/feature-flags", nil, admin)
		require.Equal(t, http.StatusOK, status)
		flags := decode[map[string]interface{}](t, body)
		assert.Contains(t, flags, "raw")
		assert.Contains(t, flags, "evaluated")
	})
}

func TestJobsWithoutRunner(t *testing.T) {
	env := newTestEnv(t)
	env.makeAdmin(t, env.fx.A)
	admin := env.token(t, env.fx.A)

	status, body := env.do(t, http.MethodGet, "/api/admin/jobs", nil, admin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	status, _ = env.do(t, http.MethodPost, "/api/admin/jobs/refresh_stats/run", nil, admin)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuthRateLimit(t *testing.T) {
	login := LoginRequest{Email: "alice@example.com", Password: "wrong1234"}

	t.Run("enforced outside development", func(t *testing.T) {
		env := newTestEnv(t, withEnv("staging"))
		for i := 0; i < 20; i++ {
			status, _ := env.do(t, http.MethodPost, "/api/auth/login", login, "")
			require.Equal(t, http.StatusUnauthorized, status, "attempt %d", i+1)
		}
		status, body := env.do(t, http.MethodPost, "/api/auth/login", login, "")
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, models.CodeRateLimited, decode[models.ErrorResponse](t, body).Code)
	})

	t.Run("bypassed in tests", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 25; i++ {
			status, _ := env.do(t, http.MethodPost, "/api/auth/login", login, "")
			require.Equal(t, http.StatusUnauthorized, status)
		}
	})
}

func TestLoginWithSeededPassword(t *testing.T) {
	env := newTestEnv(t)
	env.setPassword(t, env.fx.B, "guitar4ever")

	status, body := env.do(t, http.MethodPost, "/api/auth/login",
		LoginRequest{Email: "bob@example.com", Password: "guitar4ever"}, "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, env.fx.B.ID, decode[service.AuthResult](t, body).User.ID)
}

func TestBrowseResponsesAreCached(t *testing.T) {
	env := newTestEnv(t)
	carol := env.token(t, env.fx.C)

	status, first := env.do(t, http.MethodGet, "/api/users/browse?location=porto", nil, carol)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", strings.TrimSpace(string(first)))

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", env.fx.B.ID).Update("location", "Porto").Error)

	_, cached := env.do(t, http.MethodGet, "/api/users/browse?location=porto", nil, carol)
	assert.JSONEq(t, string(first), string(cached), "served from the response cache")

	_, fresh := env.do(t, http.MethodGet, "/api/users/browse?location=Porto", nil, carol)
	require.Len(t, decode[[]models.UserWithSkills](t, fresh), 1)

	env.mr.Close()
	status, _ = env.do(t, http.MethodGet, "/api/users/browse?location=porto", nil, carol)
	assert.Equal(t, http.StatusOK, status, "a dead cache falls through to the database")
}
