package forum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// bodyError reports a response whose body could not be read or decoded.
type bodyError struct {
	Status int
	Err    error
}

func (e *bodyError) Error() string {
	return fmt.Sprintf("HTTP %d body: %v", e.Status, e.Err)
}

func (e *bodyError) Unwrap() error { return e.Err }

// retryable reports whether a fresh request could read the body. An encoding
// we cannot decode, or a 4xx answer, will not change on retry.
func (e *bodyError) retryable() bool {
	return e.Status >= 500 && !errors.Is(e.Err, errUnsupportedEncoding)
}

// Response is a fully read HTTP response. Bodies are read inside the request
// timeout so a retry never races a half-consumed stream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// excerpt returns at most n runes of the body.
func (r *Response) excerpt(n int) string {
	return truncateRunes(r.Text(), n)
}

// Transport sends requests with the configured browser headers and retries
// transient failures (network errors, 5xx) with exponential backoff.
type Transport struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger

	// sleep and jitter are replaced in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func newTransport(cfg Config, client *http.Client, logger *zap.Logger) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		jitter: func() float64 { return 0.5 + rand.Float64() },
	}
}

// Send issues the request. 4xx responses are returned as-is; network errors
// and 5xx responses are retried up to MaxRetries extra times, after which the
// last error or the last 5xx response is returned unchanged. A body that cannot
// be decoded is only retried on 5xx. A timeout of zero means Config.Timeout.
func (t *Transport) Send(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = t.cfg.Timeout
	}
	for attempt := 0; ; attempt++ {
		resp, err := t.once(ctx, method, url, header, body, timeout)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		var be *bodyError
		if errors.As(err, &be) && !be.retryable() {
			return nil, err
		}
		if attempt >= t.cfg.MaxRetries || ctx.Err() != nil {
			return resp, err
		}
		delay := t.retryDelay(attempt)
		if err != nil {
			t.logger.Debug("request failed, retrying",
				zap.String("method", method), zap.String("url", url),
				zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		} else {
			t.logger.Debug("server error, retrying",
				zap.String("method", method), zap.String("url", url),
				zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		}
		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) once(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, url, &bodyError{Status: resp.StatusCode, Err: err})
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// retryDelay is min(MaxBackoff, base^(attempt+1) + jitter) with jitter in [0.5, 1.5).
func (t *Transport) retryDelay(attempt int) time.Duration {
	return backoff(t.cfg.BackoffBase, t.cfg.MaxBackoff, attempt, t.jitter())
}

func backoff(base float64, maxDelay time.Duration, attempt int, jitter float64) time.Duration {
	seconds := math.Pow(base, float64(attempt+1)) + jitter
	d := time.Duration(seconds * float64(time.Second))
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// readBody undoes the Content-Encoding ourselves: setting Accept-Encoding
// explicitly turns off net/http's transparent gzip handling.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(resp.Body)
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w %q", errUnsupportedEncoding, resp.Header.Get("Content-Encoding"))
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
