package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		requireHTTPS bool
		wantMessage  string
	}{
		{name: "https", url: "https://eventhost.example"},
		{name: "http with port", url: "http://localhost:8080/api/v1/events/1"},
		{name: "upper case scheme", url: "HTTPS://eventhost.example"},
		{name: "empty", url: "", wantMessage: "scheme"},
		{name: "relative", url: "/events", wantMessage: "scheme"},
		{name: "javascript", url: "javascript:alert(1)", wantMessage: "http or https"},
		{name: "ftp", url: "ftp://files.example", wantMessage: "http or https"},
		{name: "no host", url: "https:///events", wantMessage: "host"},
		{name: "http in production", url: "http://eventhost.example", requireHTTPS: true, wantMessage: "HTTPS"},
		{name: "https in production", url: "https://eventhost.example", requireHTTPS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HTTPURL(tt.url, "link", tt.requireHTTPS)
			if tt.wantMessage == "" {
				require.NoError(t, err)
				return
			}
			var urlErr URLError
			require.True(t, errors.As(err, &urlErr), "expected URLError, got %v", err)
			require.Equal(t, "link", urlErr.Field)
			require.Contains(t, urlErr.Message, tt.wantMessage)
		})
	}
}

func TestBaseURL(t *testing.T) {
	require.NoError(t, BaseURL("http://localhost:8080", "SERVER_BASE_URL", false))
	require.NoError(t, BaseURL("https://togather.example/eventhost/", "SERVER_BASE_URL", true))

	require.ErrorContains(t, BaseURL("https://a.example?x=1", "SERVER_BASE_URL", false), "query")
	require.ErrorContains(t, BaseURL("https://a.example?", "SERVER_BASE_URL", false), "query")
	require.ErrorContains(t, BaseURL("https://a.example#top", "SERVER_BASE_URL", false), "fragment")
	require.ErrorContains(t, BaseURL("https://user:pw@a.example", "SERVER_BASE_URL", false), "credentials")
	require.ErrorContains(t, BaseURL("http://a.example", "SERVER_BASE_URL", true), "HTTPS")
}

func TestURLError_Message(t *testing.T) {
	err := URLError{Field: "SERVER_BASE_URL", Message: "URL must include a host", URL: "https://"}
	require.Equal(t, "SERVER_BASE_URL: URL must include a host (url: https://)", err.Error())
}
