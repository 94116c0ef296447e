package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SubmitResult 是一次回复尝试的最终结果。
type SubmitResult struct {
	OK bool
	// Blocked is set for 401/403/429: the session, not the endpoint, was
	// refused.
	Blocked bool
	Status  int
	Message string
}

// replyEndpoint is one guess at the reply API. The thread id is always sent
// as postId and additionally under each of IDFields.
type replyEndpoint struct {
	Path     string
	IDFields []string
}

// replyEndpoints 按顺序尝试，直到某个接口接受回复。第一个是站点前端实际使用的接口，
// 其余是常见论坛程序的接口形态。
var replyEndpoints = []replyEndpoint{
	{Path: "/api/content/new-comment"},
	{Path: "/api/topic/reply", IDFields: []string{"topicId"}},
	{Path: "/api/thread/reply", IDFields: []string{"threadId"}},
	{Path: "/api/post/create", IDFields: []string{"threadId"}},
	{Path: "/api/post", IDFields: []string{"threadId"}},
	{Path: "/api/comment", IDFields: []string{"threadId"}},
}

type submitAttempt struct {
	URL     string
	Payload map[string]any
}

const placeholderTokenLength = 16

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// placeholderToken is sent when neither the operator nor the page supplied a
// CSRF token. It is an unverified guess: nothing shows the site accepts a
// client-generated value.
func placeholderToken() string {
	b := make([]byte, placeholderTokenLength)
	for i := range b {
		b[i] = tokenAlphabet[rand.IntN(len(tokenAlphabet))]
	}
	return string(b)
}

func (c *Client) resolveToken(token string) string {
	if t := strings.TrimSpace(c.cfg.StaticCSRF); t != "" {
		return t
	}
	if t := strings.TrimSpace(token); t != "" {
		return t
	}
	return c.newToken()
}

func (c *Client) attempts(threadID int64, content string) []submitAttempt {
	base := func() map[string]any {
		return map[string]any{
			"content": content,
			"mode":    "new-comment",
			"postId":  threadID,
		}
	}

	if override := strings.TrimSpace(c.cfg.ReplyEndpoint); override != "" {
		u := override
		if !strings.HasPrefix(u, "http") {
			if !strings.HasPrefix(u, "/") {
				u = "/" + u
			}
			u = c.cfg.BaseURL + u
		}
		u = strings.ReplaceAll(u, "{id}", strconv.FormatInt(threadID, 10))
		payload := base()
		payload["threadId"] = threadID
		payload["topicId"] = threadID
		return []submitAttempt{{URL: u, Payload: payload}}
	}

	out := make([]submitAttempt, 0, len(replyEndpoints))
	for _, ep := range replyEndpoints {
		payload := base()
		for _, f := range ep.IDFields {
			payload[f] = threadID
		}
		out = append(out, submitAttempt{URL: c.cfg.BaseURL + ep.Path, Payload: payload})
	}
	return out
}

// Submit posts content as a reply to the thread at threadURL. The error is
// non-nil only when the URL carries no thread id; every other outcome is
// described by the result.
func (c *Client) Submit(ctx context.Context, threadURL, content, token string) (SubmitResult, error) {
	threadID, ok := ParseThreadID(threadURL)
	if !ok {
		return SubmitResult{Message: ErrMalformedReference.Error()}, fmt.Errorf("%w: %s", ErrMalformedReference, threadURL)
	}

	referer := threadURL
	if !strings.HasPrefix(referer, "http") {
		referer = fmt.Sprintf("%s/post-%d-1", c.cfg.BaseURL, threadID)
	}
	headers := c.apiHeaders(referer, c.resolveToken(token))

	var last SubmitResult
	for _, attempt := range c.attempts(threadID, content) {
		body, err := json.Marshal(attempt.Payload)
		if err != nil {
			return SubmitResult{Message: err.Error()}, nil
		}
		resp, err := c.transport.Send(ctx, "POST", attempt.URL, headers, body, 0)
		if err != nil {
			c.logger.Debug("reply endpoint unreachable", zap.String("endpoint", attempt.URL), zap.Error(err))
			last = SubmitResult{Message: err.Error()}
			continue
		}

		result, final := interpretReply(resp)
		c.logger.Debug("reply endpoint answered",
			zap.String("endpoint", attempt.URL), zap.Int("status", resp.StatusCode), zap.Bool("final", final))
		if final {
			return result, nil
		}
		last = result
	}

	if last.Message == "" {
		last.Message = "no reply endpoint accepted the request"
	}
	return last, nil
}

// interpretReply maps one endpoint response to a result. final reports whether
// probing should stop.
func interpretReply(resp *Response) (result SubmitResult, final bool) {
	data := decodeReplyBody(resp)
	obj, isObject := data.(map[string]any)
	result = SubmitResult{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, describe(data))}

	switch resp.StatusCode {
	case 200, 201:
		if !isObject {
			return result, false
		}
		if truthy(obj["success"]) || truthy(obj["ok"]) || isSuccessStatus(obj["status"]) {
			return SubmitResult{OK: true, Status: resp.StatusCode, Message: messageOr(obj, "reply posted")}, true
		}
		if !truthy(obj["error"]) {
			return SubmitResult{OK: true, Status: resp.StatusCode, Message: messageOr(obj, "reply posted") + " (no explicit success flag)"}, true
		}
		return result, false
	case 401, 403, 429:
		result.Blocked = true
		return result, true
	}
	return result, false
}

// decodeReplyBody returns the JSON body, or a small object describing the
// raw response when the body is not JSON.
func decodeReplyBody(resp *Response) any {
	var data any
	if err := json.Unmarshal(resp.Body, &data); err == nil {
		return data
	}
	return map[string]any{
		"status_code": resp.StatusCode,
		"text":        resp.excerpt(300),
	}
}

func isSuccessStatus(v any) bool {
	switch s := v.(type) {
	case string:
		return s == "ok" || s == "success"
	case float64:
		return s == 0 || s == 200
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func messageOr(obj map[string]any, fallback string) string {
	if m := obj["message"]; truthy(m) {
		return fmt.Sprint(m)
	}
	return fallback
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return truncateRunes(string(b), 300)
}
