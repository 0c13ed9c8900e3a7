package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/Togather-Foundation/eventhost/internal/validation"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service sends registration notices through Resend or SMTP. When disabled
// it only logs what it would have sent.
type Service struct {
	config       config.EmailConfig
	provider     string
	resendClient *resend.Client
	templates    *template.Template
	logger       zerolog.Logger
	now          func() time.Time
}

// Notice is the data rendered into a registration email.
type Notice struct {
	To            string
	Name          string
	EventID       string
	EventTitle    string
	EventDate     string
	EventLocation string
	EventURL      string
}

type noticeData struct {
	Notice
	CurrentYear int
}

type noticeKind string

const (
	kindConfirmed noticeKind = "registration_confirmed"
	kindCancelled noticeKind = "registration_cancelled"
)

// message is a rendered notice ready for a provider.
type message struct {
	kind    noticeKind
	notice  Notice
	subject string
	html    string
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		provider:  cfg.Provider,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
		now:       time.Now,
	}
	if cfg.Enabled && cfg.Provider == "resend" {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// RegistrationConfirmed tells a user their seat is held.
func (s *Service) RegistrationConfirmed(ctx context.Context, n Notice) error {
	return s.sendNotice(ctx, n, kindConfirmed, "You're registered: "+n.EventTitle)
}

// RegistrationCancelled tells a user their seat was released.
func (s *Service) RegistrationCancelled(ctx context.Context, n Notice) error {
	return s.sendNotice(ctx, n, kindCancelled, "Registration cancelled: "+n.EventTitle)
}

func (s *Service) sendNotice(ctx context.Context, n Notice, kind noticeKind, subject string) error {
	if err := validateEmailAddress(n.To); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if n.EventURL != "" {
		if err := validation.HTTPURL(n.EventURL, "event_url", false); err != nil {
			return fmt.Errorf("invalid event link: %w", err)
		}
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", n.To).
			Str("notice", string(kind)).
			Str("event", n.EventTitle).
			Msg("email service disabled, skipping registration email")
		return nil
	}

	htmlBody, err := s.renderTemplate(string(kind)+".html", noticeData{Notice: n, CurrentYear: s.now().Year()})
	if err != nil {
		return err
	}
	msg := message{kind: kind, notice: n, subject: subject, html: htmlBody}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}
	return nil
}

func (s *Service) send(ctx context.Context, msg message) error {
	switch s.provider {
	case "resend":
		return s.sendViaResend(ctx, msg)
	case "smtp":
		return s.sendViaSMTP(msg.notice.To, msg.subject, msg.html)
	default:
		return fmt.Errorf("unknown email provider %q", s.provider)
	}
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
