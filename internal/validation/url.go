package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError names the setting or field holding a rejected URL.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// HTTPURL accepts only absolute http(s) URLs with a host. With requireHTTPS
// plain http is rejected as well.
func HTTPURL(raw, field string, requireHTTPS bool) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case scheme == "":
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	case scheme != "http" && scheme != "https":
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	case parsed.Host == "":
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	case requireHTTPS && scheme != "https":
		return URLError{Field: field, Message: "URL must use HTTPS in production", URL: raw}
	}
	return nil
}

// BaseURL validates the public root that resource links are built from. A
// path prefix is allowed; query strings and fragments are not.
func BaseURL(raw, field string, requireHTTPS bool) error {
	if err := HTTPURL(raw, field, requireHTTPS); err != nil {
		return err
	}
	parsed, _ := url.Parse(strings.TrimSpace(raw))
	if parsed.RawQuery != "" || parsed.ForceQuery {
		return URLError{Field: field, Message: "base URL must not contain query parameters", URL: raw}
	}
	if parsed.Fragment != "" {
		return URLError{Field: field, Message: "base URL must not contain a fragment", URL: raw}
	}
	if parsed.User != nil {
		return URLError{Field: field, Message: "base URL must not contain credentials", URL: raw}
	}
	return nil
}
