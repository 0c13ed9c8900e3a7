package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ErrRateLimited is returned when Resend refuses a send for quota reasons.
// Notices are not retried.
var ErrRateLimited = errors.New("email rate limited")

// Resend tag values allow only ASCII letters, digits, '_' and '-'.
var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// resendRequest tags each notice with its kind and event.
func (s *Service) resendRequest(msg message) *resend.SendEmailRequest {
	req := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{msg.notice.To},
		Subject: msg.subject,
		Html:    msg.html,
		Text:    plainText(msg),
		Tags:    []resend.Tag{{Name: "notice", Value: string(msg.kind)}},
	}
	if id := tagUnsafe.ReplaceAllString(msg.notice.EventID, "_"); id != "" {
		req.Tags = append(req.Tags, resend.Tag{Name: "event_id", Value: id})
		req.Headers = map[string]string{"X-Entity-Ref-ID": string(msg.kind) + "-" + id}
	}
	return req
}

func plainText(msg message) string {
	var b strings.Builder
	n := msg.notice
	fmt.Fprintf(&b, "Hi %s,\n\n", n.Name)
	switch msg.kind {
	case kindCancelled:
		fmt.Fprintf(&b, "Your registration for %s has been cancelled and your seat released.\n", n.EventTitle)
	default:
		fmt.Fprintf(&b, "You're registered for %s.\n", n.EventTitle)
	}
	fmt.Fprintf(&b, "\nWhen: %s\nWhere: %s\n", n.EventDate, n.EventLocation)
	if n.EventURL != "" {
		fmt.Fprintf(&b, "\n%s\n", n.EventURL)
	}
	return b.String()
}

func (s *Service) sendViaResend(ctx context.Context, msg message) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend client not initialized")
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, s.resendRequest(msg))
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("notice", string(msg.kind)).
				Str("event_id", msg.notice.EventID).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("registration email dropped by resend rate limit")
			return fmt.Errorf("%w (resets in %ss): %v", ErrRateLimited, rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend: %w", err)
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("notice", string(msg.kind)).
		Str("event_id", msg.notice.EventID).
		Msg("registration email sent")
	return nil
}
