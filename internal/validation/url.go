package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// linkSchemes are the schemes an image src or link href may carry.
var linkSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
}

// ValidateURL validates URLs handed to the system browser opener.
// Only absolute http/https URLs without shell metacharacters pass.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	dangerous := []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", " "}
	for _, char := range dangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %q", char)
		}
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// ValidateLinkURL validates a URL written into an element's src or href.
// Relative references and http, https, mailto and tel URLs are accepted;
// javascript:, data: and every other scheme are rejected.
func ValidateLinkURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("URL contains control characters")
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme == "" {
		// Browsers strip tabs and newlines before scheme detection, so a
		// colon ahead of the first slash still smuggles a scheme.
		if i := strings.IndexByte(trimmed, ':'); i >= 0 {
			if j := strings.IndexAny(trimmed, "/?#"); j < 0 || i < j {
				return fmt.Errorf("invalid relative URL: %s", trimmed)
			}
		}
		return nil
	}

	if !linkSchemes[strings.ToLower(parsed.Scheme)] {
		return fmt.Errorf("URL scheme %q is not allowed", parsed.Scheme)
	}
	if (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	return nil
}
