package forum

import (
	"regexp"
	"strconv"
	"strings"
)

// ThreadRef points at a thread found on a listing page or supplied by the
// operator.
type ThreadRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	ID    int64  `json:"thread_id"`
}

// ThreadContext is a snapshot of a thread page as seen by the session.
type ThreadContext struct {
	ThreadID  int64    `json:"thread_id,omitempty"`
	Title     string   `json:"title"`
	OPSummary string   `json:"op_summary"`
	Comments  []string `json:"comments"`
	// CSRF is empty when the page carries no token.
	CSRF string `json:"csrf,omitempty"`
	// HasCommented is true when a comment by the session's own account is on
	// the page.
	HasCommented bool `json:"has_commented"`
}

var threadIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/t/(\d+)`),
	regexp.MustCompile(`/post-(\d+)`),
}

// ParseThreadID extracts the numeric thread id from a /t/<id> or
// /post-<id>-<page> URL.
func ParseThreadID(rawURL string) (int64, bool) {
	for _, re := range threadIDPatterns {
		m := re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		return id, true
	}
	return 0, false
}

// CSRFFromCookie returns the value of the first cookie whose name contains
// "csrf" or ends with "token".
func CSRFFromCookie(cookie string) (string, bool) {
	for _, part := range strings.Split(cookie, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if !strings.Contains(key, "csrf") && !strings.HasSuffix(key, "token") {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	return "", false
}
