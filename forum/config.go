package forum

import (
	"strings"
	"time"
)

const defaultBaseURL = "https://www.nodeseek.com"

// Config holds everything a Client needs. The zero value is not usable;
// start from DefaultConfig and override fields.
type Config struct {
	BaseURL string
	Cookie  string

	UserAgent       string
	Accept          string
	AcceptLanguage  string
	AcceptEncoding  string
	SecCHUA         string
	SecCHUAMobile   string
	SecCHUAPlatform string
	SecFetchDest    string
	SecFetchMode    string
	SecFetchSite    string
	CacheControl    string
	Pragma          string
	// ExtraHeaders are sent on every request, e.g. refract-key / refract-sign
	// values copied from a browser session.
	ExtraHeaders map[string]string
	// Referer for page fetches. Defaults to BaseURL.
	Referer string

	Timeout     time.Duration
	MaxRetries  int
	BackoffBase float64
	MaxBackoff  time.Duration

	// ReplyEndpoint replaces the built-in endpoint list when set. "{id}" is
	// substituted with the numeric thread id.
	ReplyEndpoint string
	// StaticCSRF wins over any token found on the page.
	StaticCSRF string
}

// DefaultConfig returns the header set of a desktop Edge browser and the
// default retry policy.
func DefaultConfig() Config {
	return Config{
		BaseURL:         defaultBaseURL,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8",
		AcceptEncoding:  "gzip, deflate, br, zstd",
		SecCHUA:         `"Not A(Brand";v="99", "Microsoft Edge";v="121", "Chromium";v="121"`,
		SecCHUAMobile:   "?0",
		SecCHUAPlatform: `"Windows"`,
		SecFetchDest:    "document",
		SecFetchMode:    "navigate",
		SecFetchSite:    "same-origin",
		CacheControl:    "no-cache",
		Pragma:          "no-cache",
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		BackoffBase:     1.6,
		MaxBackoff:      20 * time.Second,
	}
}

func (c Config) normalized() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout < 5*time.Second {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase < 1.1 {
		c.BackoffBase = 1.1
	}
	if c.MaxBackoff < time.Second {
		c.MaxBackoff = time.Second
	}
	if c.Referer == "" {
		c.Referer = c.BaseURL
	}
	return c
}
