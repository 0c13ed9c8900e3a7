package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) (map[string]json.RawMessage, Entry) {
	t.Helper()
	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &wrapper))

	raw, ok := wrapper["audit"]
	require.True(t, ok, "no audit field in %s", buf.String())
	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	return wrapper, entry
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.LogSuccess("user.signup", "01HX12ABC123", "user", "01HX12ABC123", "192.168.1.1", nil)

	wrapper, entry := decodeEntry(t, &buf)
	require.Equal(t, "user.signup", entry.Action)
	require.Equal(t, "01HX12ABC123", entry.Actor)
	require.Equal(t, "user", entry.ResourceType)
	require.Equal(t, "192.168.1.1", entry.IPAddress)
	require.Equal(t, "success", entry.Status)
	require.False(t, entry.Timestamp.IsZero())
	require.JSONEq(t, `"info"`, string(wrapper["level"]))
	require.JSONEq(t, `"audit"`, string(wrapper["component"]))
}

func TestLogger_LogFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.LogFailure("user.login", "ada@example.com", "10.0.0.1", map[string]string{"reason": "invalid_credentials"})

	wrapper, entry := decodeEntry(t, &buf)
	require.Equal(t, "failure", entry.Status)
	require.Equal(t, "invalid_credentials", entry.Details["reason"])
	require.JSONEq(t, `"warn"`, string(wrapper["level"]))
}

func TestLogger_LogViolation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.LogViolation("registration.unregister", "event", "01HX12EVENT", map[string]string{"user_id": "01HX12USER"})

	wrapper, entry := decodeEntry(t, &buf)
	require.Equal(t, "violation", entry.Status)
	require.Equal(t, "01HX12EVENT", entry.ResourceID)
	require.Equal(t, "01HX12USER", entry.Details["user_id"])
	require.JSONEq(t, `"error"`, string(wrapper["level"]))
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() {
		logger.LogSuccess("noop", "", "", "", "", nil)
	})
}
