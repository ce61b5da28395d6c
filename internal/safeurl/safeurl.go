package safeurl

import (
	"net/url"
	"regexp"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return s == "http" || s == "https"
}

var credentialParam = regexp.MustCompile(`(?i)((?:username|password)=)[^&\s"]+`)

// Redact masks provider credentials in s. Query parameters username= and password= are always
// masked; every non-empty secret (e.g. the user and password embedded in playback paths) is
// replaced wherever it appears.
func Redact(s string, secrets ...string) string {
	s = credentialParam.ReplaceAllString(s, "${1}***")
	for _, secret := range secrets {
		if len(secret) < 2 {
			// a one-character secret would shred the rest of the line
			continue
		}
		s = strings.ReplaceAll(s, secret, "***")
		for _, esc := range []string{url.PathEscape(secret), url.QueryEscape(secret)} {
			if esc != secret {
				s = strings.ReplaceAll(s, esc, "***")
			}
		}
	}
	return s
}
