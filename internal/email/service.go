// Package email renders and sends the transactional emails of the platform.
package email

import (
	"context"
	"fmt"

	"skillswap/internal/models"
	"skillswap/internal/observability"
)

// Service composes messages for domain events and hands them to a Sender.
// A recipient without an address is skipped without error.
type Service struct {
	sender      Sender
	renderer    *Renderer
	frontendURL string
}

// NewService creates an email service.
func NewService(sender Sender, renderer *Renderer, frontendURL string) *Service {
	return &Service{sender: sender, renderer: renderer, frontendURL: frontendURL}
}

func (s *Service) send(ctx context.Context, kind string, to models.User, subject, tmpl string, data interface{}) error {
	if to.Email == "" {
		observability.Notifications.WithLabelValues("email", "skipped").Inc()
		return nil
	}
	body, err := s.renderer.Render(tmpl, data)
	if err != nil {
		observability.Notifications.WithLabelValues("email", "failed").Inc()
		return err
	}
	if err := s.sender.Send(ctx, Message{To: to.Email, Subject: subject, HTML: body}); err != nil {
		observability.Notifications.WithLabelValues("email", "failed").Inc()
		return fmt.Errorf("%s email to user %d: %w", kind, to.ID, err)
	}
	observability.Notifications.WithLabelValues("email", "sent").Inc()
	return nil
}

// SendWelcome greets a new member.
func (s *Service) SendWelcome(ctx context.Context, user models.User) error {
	return s.send(ctx, "welcome", user, "Welcome to SkillSwap Platform!", TemplateWelcome, map[string]string{
		"Name":        user.DisplayName(),
		"FrontendURL": s.frontendURL,
	})
}

type swapRequestData struct {
	RequesterName  string
	OfferedSkill   string
	RequestedSkill string
	Message        string
	FrontendURL    string
}

// SendSwapRequest tells the receiver about a new request. The swap must have
// its participants and skills loaded.
func (s *Service) SendSwapRequest(ctx context.Context, swap models.SwapRequest) error {
	requester := swap.Requester.DisplayName()
	return s.send(ctx, "swap request", swap.Receiver, "New skill swap request from "+requester, TemplateSwapRequest, swapRequestData{
		RequesterName:  requester,
		OfferedSkill:   swap.OfferedSkill.Name,
		RequestedSkill: swap.RequestedSkill.Name,
		Message:        swap.Message,
		FrontendURL:    s.frontendURL,
	})
}

// StatusSubject returns the subject and lead sentence for a status email.
// The second result is false for statuses that send no email.
func StatusSubject(status models.SwapStatus, otherName string) (subject, lead string, ok bool) {
	switch status {
	case models.SwapStatusAccepted:
		return "Your skill swap request was accepted!",
			fmt.Sprintf("Great news! %s has accepted your skill swap request.", otherName), true
	case models.SwapStatusRejected:
		return "Skill swap request update",
			fmt.Sprintf("%s has declined your skill swap request. Don't worry, there are many other opportunities!", otherName), true
	case models.SwapStatusCompleted:
		return "Skill swap completed!",
			fmt.Sprintf("Your skill swap with %s has been marked as completed. Don't forget to leave feedback!", otherName), true
	default:
		return "", "", false
	}
}

type statusUpdateData struct {
	StatusMessage  string
	OfferedSkill   string
	RequestedSkill string
	FrontendURL    string
}

// SendStatusUpdate tells recipient that actor moved the swap to its current status.
func (s *Service) SendStatusUpdate(ctx context.Context, recipient, actor models.User, swap models.SwapRequest) error {
	subject, lead, ok := StatusSubject(swap.Status, actor.DisplayName())
	if !ok {
		return nil
	}
	return s.send(ctx, "status update", recipient, subject, TemplateStatusUpdate, statusUpdateData{
		StatusMessage:  lead,
		OfferedSkill:   swap.OfferedSkill.Name,
		RequestedSkill: swap.RequestedSkill.Name,
		FrontendURL:    s.frontendURL,
	})
}

// SendNewMessage forwards a thread message to an offline participant.
func (s *Service) SendNewMessage(ctx context.Context, recipient, sender models.User, content string, swapID uint) error {
	name := sender.DisplayName()
	return s.send(ctx, "message", recipient, "New message from "+name, TemplateMessage, map[string]interface{}{
		"SenderName":    name,
		"Content":       content,
		"FrontendURL":   s.frontendURL,
		"SwapRequestID": swapID,
	})
}

// SendFeedbackReminder nudges a participant to review the other side.
func (s *Service) SendFeedbackReminder(ctx context.Context, recipient, other models.User, swapID uint) error {
	return s.send(ctx, "feedback reminder", recipient, "Please leave feedback for your recent skill swap", TemplateFeedbackReminder, map[string]interface{}{
		"OtherName":     other.DisplayName(),
		"FrontendURL":   s.frontendURL,
		"SwapRequestID": swapID,
	})
}

type suggestion struct {
	Name, Title string
}

// SendWeeklyDigest summarizes the week for one member.
func (s *Service) SendWeeklyDigest(ctx context.Context, user models.User, stats models.DigestStats) error {
	suggested := make([]suggestion, 0, len(stats.SuggestedUsers))
	for _, u := range stats.SuggestedUsers {
		title := u.Title
		if title == "" {
			title = "Skill swapper"
		}
		suggested = append(suggested, suggestion{Name: u.DisplayName(), Title: title})
	}
	return s.send(ctx, "weekly digest", user, "Your weekly SkillSwap digest", TemplateWeeklyDigest, map[string]interface{}{
		"Name":            user.DisplayName(),
		"FrontendURL":     s.frontendURL,
		"NewSwapRequests": stats.NewSwapRequests,
		"CompletedSwaps":  stats.CompletedSwaps,
		"NewSkills":       stats.NewSkills,
		"Suggested":       suggested,
	})
}

// Verify checks the relay when the sender supports it.
func (s *Service) Verify(ctx context.Context) error {
	if v, ok := s.sender.(interface{ Verify(context.Context) error }); ok {
		return v.Verify(ctx)
	}
	return nil
}
