package email

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testNotice() Notice {
	return Notice{
		To:            "ada@example.com",
		Name:          "Ada",
		EventID:       "01HQZX3Y4K6F7G8H9J0K1M2N3P",
		EventTitle:    "Go Meetup",
		EventDate:     "2026-11-20",
		EventLocation: "Community Hall",
		EventURL:      "http://localhost:8080/api/v1/events/01HQZX3Y4K6F7G8H9J0K1M2N3P",
	}
}

// newResendService points a Resend-backed service at handler.
func newResendService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(config.EmailConfig{
		Enabled:      true,
		Provider:     "resend",
		From:         "events@example.com",
		ResendAPIKey: "test-api-key",
	}, zerolog.Nop())
	require.NoError(t, err)

	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	svc.resendClient.BaseURL = baseURL
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestRegistrationConfirmed_Resend(t *testing.T) {
	var got resend.SendEmailRequest
	svc := newResendService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/emails", r.URL.Path)
		require.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mock-email-id-123"})
	})

	require.NoError(t, svc.RegistrationConfirmed(context.Background(), testNotice()))
	require.Equal(t, "events@example.com", got.From)
	require.Equal(t, []string{"ada@example.com"}, got.To)
	require.Equal(t, "You're registered: Go Meetup", got.Subject)
	require.Contains(t, got.Html, "Hi Ada")
	require.Contains(t, got.Html, "Community Hall")
	require.Contains(t, got.Html, "2026 eventhost")
	require.Equal(t, []resend.Tag{
		{Name: "notice", Value: "registration_confirmed"},
		{Name: "event_id", Value: "01HQZX3Y4K6F7G8H9J0K1M2N3P"},
	}, got.Tags)
	require.Equal(t, "registration_confirmed-01HQZX3Y4K6F7G8H9J0K1M2N3P", got.Headers["X-Entity-Ref-ID"])
	require.Contains(t, got.Text, "You're registered for Go Meetup.")
	require.Contains(t, got.Text, "Where: Community Hall")
}

func TestRegistrationCancelled_Resend(t *testing.T) {
	var got resend.SendEmailRequest
	svc := newResendService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mock-email-id-456"})
	})

	require.NoError(t, svc.RegistrationCancelled(context.Background(), testNotice()))
	require.Equal(t, "Registration cancelled: Go Meetup", got.Subject)
	require.Contains(t, got.Html, "seat released")
	require.Equal(t, "registration_cancelled", got.Tags[0].Value)
	require.Contains(t, got.Text, "has been cancelled")
}

func TestResendRequest_TagsWithoutEvent(t *testing.T) {
	svc := &Service{config: config.EmailConfig{From: "events@example.com"}}
	n := testNotice()
	n.EventID = ""
	req := svc.resendRequest(message{kind: kindConfirmed, notice: n, subject: "s", html: "<p>h</p>"})
	require.Equal(t, []resend.Tag{{Name: "notice", Value: "registration_confirmed"}}, req.Tags)
	require.Nil(t, req.Headers)

	n.EventID = "evt 1/2"
	req = svc.resendRequest(message{kind: kindCancelled, notice: n})
	require.Equal(t, "evt_1_2", req.Tags[1].Value)
}

func TestSendViaResend_RateLimitError(t *testing.T) {
	svc := newResendService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ratelimit-limit", "100")
		w.Header().Set("ratelimit-remaining", "0")
		w.Header().Set("ratelimit-reset", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
	})

	err := svc.sendViaResend(context.Background(), message{kind: kindConfirmed, notice: testNotice(), subject: "Subject", html: "<p>Body</p>"})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Contains(t, err.Error(), "resets in 60s")
}

func TestSendViaResend_NilClient(t *testing.T) {
	svc := &Service{provider: "resend", logger: zerolog.Nop()}
	err := svc.sendViaResend(context.Background(), message{kind: kindConfirmed, notice: testNotice()})
	require.ErrorContains(t, err, "not initialized")
}

func TestDisabledServiceOnlyLogs(t *testing.T) {
	var logs bytes.Buffer
	svc, err := NewService(config.EmailConfig{Provider: "resend"}, zerolog.New(&logs))
	require.NoError(t, err)
	require.Nil(t, svc.resendClient)

	require.NoError(t, svc.RegistrationConfirmed(context.Background(), testNotice()))
	require.Contains(t, logs.String(), "email service disabled")
	require.Contains(t, logs.String(), "ada@example.com")
}

func TestNotice_RejectsBadInput(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)

	bad := testNotice()
	bad.To = "victim@example.com\r\nBcc: attacker@evil.com"
	require.ErrorContains(t, svc.RegistrationConfirmed(context.Background(), bad), "invalid recipient")

	bad = testNotice()
	bad.EventURL = "javascript:alert(1)"
	require.ErrorContains(t, svc.RegistrationConfirmed(context.Background(), bad), "invalid event link")
}

func TestNewService_InvalidSender(t *testing.T) {
	_, err := NewService(config.EmailConfig{Enabled: true, Provider: "resend", From: "not-an-address"}, zerolog.Nop())
	require.ErrorContains(t, err, "invalid sender")
}

func TestTemplatesEscapeInput(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)

	n := testNotice()
	n.EventTitle = "<script>alert(1)</script>"
	out, err := svc.renderTemplate("registration_confirmed.html", noticeData{Notice: n, CurrentYear: 2026})
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")
	require.Contains(t, out, "&lt;script&gt;")
}

func TestValidateEmailAddress(t *testing.T) {
	for _, valid := range []string{"user@example.com", "user+tag@example.co.uk", "User Name <user@example.com>"} {
		require.NoError(t, validateEmailAddress(valid), valid)
	}
	for _, invalid := range []string{"", "notanemail", "@example.com", "user@", "user@@example.com"} {
		require.Error(t, validateEmailAddress(invalid), invalid)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("from@example.com", "to@example.com", "Hello", "<p>Body</p>"))
	require.True(t, strings.HasPrefix(msg, "From: from@example.com\r\nTo: to@example.com\r\nSubject: Hello\r\n"))
	require.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>Body</p>")
}

func TestSend_UnknownProvider(t *testing.T) {
	svc := &Service{provider: "pigeon", logger: zerolog.Nop()}
	require.ErrorContains(t, svc.send(context.Background(), message{kind: kindConfirmed, notice: testNotice()}), "unknown email provider")
}
