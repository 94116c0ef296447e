package forum

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked means the site refused the session (HTTP 403). Callers should
	// stop working with the account instead of retrying.
	ErrBlocked = errors.New("forum: access blocked")
	// ErrMalformedReference 表示无法从 URL 中解析出帖子 id。
	ErrMalformedReference = errors.New("forum: cannot parse thread id from url")
)

// StatusError reports an unexpected HTTP status on a page fetch.
type StatusError struct {
	URL     string
	Status  int
	Excerpt string
}

func (e *StatusError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("HTTP %d at %s", e.Status, e.URL)
	}
	return fmt.Sprintf("HTTP %d at %s: %s", e.Status, e.URL, e.Excerpt)
}

func blockedError(url string) error {
	return fmt.Errorf("%w: HTTP 403 at %s", ErrBlocked, url)
}
