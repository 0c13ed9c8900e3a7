package audit

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Status       string            `json:"status"` // "success", "failure" or "violation"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger writes audit entries for account activity and accounting
// invariant violations.
type Logger struct {
	output zerolog.Logger
}

// NewLogger creates an audit logger writing JSON to stderr.
func NewLogger() *Logger {
	return NewLoggerWithZerolog(zerolog.New(os.Stderr))
}

func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{
		output: logger.With().Str("component", "audit").Logger(),
	}
}

// Log writes an audit entry to the log output
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	level := zerolog.InfoLevel
	switch entry.Status {
	case "failure":
		level = zerolog.WarnLevel
	case "violation":
		level = zerolog.ErrorLevel
	}
	l.output.WithLevel(level).Interface("audit", entry).Msg(entry.Action)
}

// LogSuccess logs a successful operation
func (l *Logger) LogSuccess(action, actor, resourceType, resourceID, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Status:       "success",
		Details:      details,
	})
}

// LogFailure logs a failed operation
func (l *Logger) LogFailure(action, actor, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:    action,
		Actor:     actor,
		IPAddress: ipAddress,
		Status:    "failure",
		Details:   details,
	})
}

// LogViolation records a broken data invariant that needs operator attention.
func (l *Logger) LogViolation(action, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "violation",
		Details:      details,
	})
}
