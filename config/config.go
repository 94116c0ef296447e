// Package config assembles the runtime configuration from .env, the process
// environment (NS_* variables) and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bw4243/NodeSeek-Signin/commenter"
	"github.com/bw4243/NodeSeek-Signin/forum"
	"github.com/bw4243/NodeSeek-Signin/generator"
)

// App is everything the CLI needs.
type App struct {
	Forum       forum.Config
	Accounts    []commenter.Account
	Comment     commenter.Settings
	LLM         generator.LLMSettings
	HistoryPath string
}

// envBindings maps config keys to the environment variables that feed them.
// Earlier names win.
var envBindings = map[string][]string{
	"forum.base_url":           {"NS_BASE_URL"},
	"forum.user_agent":         {"NS_UA"},
	"forum.accept":             {"NS_ACCEPT"},
	"forum.accept_language":    {"NS_ACCEPT_LANGUAGE"},
	"forum.accept_encoding":    {"NS_ACCEPT_ENCODING"},
	"forum.sec_ch_ua":          {"NS_SEC_CH_UA"},
	"forum.sec_ch_ua_mobile":   {"NS_SEC_CH_UA_MOBILE"},
	"forum.sec_ch_ua_platform": {"NS_SEC_CH_UA_PLATFORM"},
	"forum.sec_fetch_dest":     {"NS_SEC_FETCH_DEST"},
	"forum.sec_fetch_mode":     {"NS_SEC_FETCH_MODE"},
	"forum.sec_fetch_site":     {"NS_SEC_FETCH_SITE"},
	"forum.cache_control":      {"NS_CACHE_CONTROL"},
	"forum.pragma":             {"NS_PRAGMA"},
	"forum.referer":            {"NS_REFERER"},
	"forum.refract_key":        {"NS_REFRACT_KEY"},
	"forum.refract_sign":       {"NS_REFRACT_SIGN"},
	"forum.timeout":            {"NS_HTTP_TIMEOUT"},
	"forum.retries":            {"NS_HTTP_RETRY"},
	"forum.backoff_base":       {"NS_HTTP_BACKOFF_BASE"},
	"forum.max_backoff":        {"NS_HTTP_MAX_BACKOFF"},
	"forum.reply_endpoint":     {"NS_COMMENT_REPLY_ENDPOINT"},
	"forum.static_csrf":        {"NS_COMMENT_STATIC_CSRF"},

	"accounts.cookies":     {"NS_COOKIE"},
	"accounts.cookie_file": {"NS_COOKIE_FILE"},

	"comment.category":     {"NS_COMMENT_CATEGORY_SLUG"},
	"comment.thread_urls":  {"NS_THREAD_URLS"},
	"comment.daily_limit":  {"NS_COMMENT_DAILY_LIMIT"},
	"comment.sample_count": {"NS_COMMENT_SAMPLE_COUNT"},
	"comment.min_sample":   {"NS_COMMENT_MIN_SAMPLE"},
	"comment.min_len":      {"NS_COMMENT_MIN_LEN"},
	"comment.max_len":      {"NS_COMMENT_MAX_LEN"},
	"comment.language":     {"NS_COMMENT_LANGUAGE"},
	"comment.blacklist":    {"NS_COMMENT_BLACKLIST"},
	"comment.cooldown":     {"NS_COMMENT_BACKOFF"},
	"comment.read_delay":   {"NS_COMMENT_READ_DELAY"},
	"comment.dry_run":      {"NS_COMMENT_DRY_RUN"},
	"comment.history_path": {"NS_COMMENT_HISTORY"},

	"llm.provider":       {"NS_LLM_PROVIDER"},
	"llm.model":          {"NS_LLM_MODEL", "GOOGLE_MODEL", "OPENAI_MODEL"},
	"llm.api_key":        {"NS_LLM_API_KEY"},
	"llm.base_url":       {"NS_LLM_BASE_URL", "OPENAI_BASE_URL"},
	"llm.google_api_key": {"GOOGLE_API_KEY"},
	"llm.openai_api_key": {"OPENAI_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	f := forum.DefaultConfig()
	v.SetDefault("forum.base_url", f.BaseURL)
	v.SetDefault("forum.user_agent", f.UserAgent)
	v.SetDefault("forum.accept", f.Accept)
	v.SetDefault("forum.accept_language", f.AcceptLanguage)
	v.SetDefault("forum.accept_encoding", f.AcceptEncoding)
	v.SetDefault("forum.sec_ch_ua", f.SecCHUA)
	v.SetDefault("forum.sec_ch_ua_mobile", f.SecCHUAMobile)
	v.SetDefault("forum.sec_ch_ua_platform", f.SecCHUAPlatform)
	v.SetDefault("forum.sec_fetch_dest", f.SecFetchDest)
	v.SetDefault("forum.sec_fetch_mode", f.SecFetchMode)
	v.SetDefault("forum.sec_fetch_site", f.SecFetchSite)
	v.SetDefault("forum.cache_control", f.CacheControl)
	v.SetDefault("forum.pragma", f.Pragma)
	v.SetDefault("forum.timeout", f.Timeout.Seconds())
	v.SetDefault("forum.retries", f.MaxRetries)
	v.SetDefault("forum.backoff_base", f.BackoffBase)
	v.SetDefault("forum.max_backoff", f.MaxBackoff.Seconds())

	c := commenter.DefaultSettings()
	v.SetDefault("comment.category", c.CategorySlug)
	v.SetDefault("comment.daily_limit", c.DailyLimit)
	v.SetDefault("comment.sample_count", c.SampleCount)
	v.SetDefault("comment.min_sample", c.MinSample)
	v.SetDefault("comment.min_len", c.Constraints.MinLength)
	v.SetDefault("comment.max_len", c.Constraints.MaxLength)
	v.SetDefault("comment.language", c.Constraints.Language)
	v.SetDefault("comment.blacklist", strings.Join(c.Blacklist, ","))
	v.SetDefault("comment.cooldown", fmt.Sprintf("%d-%d", int(c.CooldownMin.Seconds()), int(c.CooldownMax.Seconds())))
	v.SetDefault("comment.read_delay", fmt.Sprintf("%d-%d", int(c.ReadDelayMin.Seconds()), int(c.ReadDelayMax.Seconds())))
	v.SetDefault("comment.dry_run", c.DryRun)
	v.SetDefault("comment.history_path", "./cookie/comment_history.toml")

	v.SetDefault("llm.provider", "gemini")
}

// Load reads .env (if present), the environment and, when path is not
// empty, a config file in any format viper understands.
func Load(path string) (App, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper binds defaults and environment variables onto v and decodes the
// result.
func FromViper(v *viper.Viper) (App, error) {
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return App{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	accounts, err := loadAccounts(v)
	if err != nil {
		return App{}, err
	}
	comment, err := commentSettings(v)
	if err != nil {
		return App{}, err
	}
	return App{
		Forum:       forumConfig(v),
		Accounts:    accounts,
		Comment:     comment,
		LLM:         llmSettings(v),
		HistoryPath: v.GetString("comment.history_path"),
	}, nil
}

func forumConfig(v *viper.Viper) forum.Config {
	cfg := forum.Config{
		BaseURL:         v.GetString("forum.base_url"),
		UserAgent:       v.GetString("forum.user_agent"),
		Accept:          v.GetString("forum.accept"),
		AcceptLanguage:  v.GetString("forum.accept_language"),
		AcceptEncoding:  v.GetString("forum.accept_encoding"),
		SecCHUA:         v.GetString("forum.sec_ch_ua"),
		SecCHUAMobile:   v.GetString("forum.sec_ch_ua_mobile"),
		SecCHUAPlatform: v.GetString("forum.sec_ch_ua_platform"),
		SecFetchDest:    v.GetString("forum.sec_fetch_dest"),
		SecFetchMode:    v.GetString("forum.sec_fetch_mode"),
		SecFetchSite:    v.GetString("forum.sec_fetch_site"),
		CacheControl:    v.GetString("forum.cache_control"),
		Pragma:          v.GetString("forum.pragma"),
		Referer:         v.GetString("forum.referer"),
		Timeout:         seconds(v.GetFloat64("forum.timeout")),
		MaxRetries:      v.GetInt("forum.retries"),
		BackoffBase:     v.GetFloat64("forum.backoff_base"),
		MaxBackoff:      seconds(v.GetFloat64("forum.max_backoff")),
		ReplyEndpoint:   strings.TrimSpace(v.GetString("forum.reply_endpoint")),
		StaticCSRF:      strings.TrimSpace(v.GetString("forum.static_csrf")),
	}
	extra := map[string]string{}
	if k := v.GetString("forum.refract_key"); k != "" {
		extra["refract-key"] = k
	}
	if s := v.GetString("forum.refract_sign"); s != "" {
		extra["refract-sign"] = s
	}
	if len(extra) > 0 {
		cfg.ExtraHeaders = extra
	}
	return cfg
}

// loadAccounts splits the cookie setting (or cookie file) into accounts.
// Cookies are separated by "&" or newlines.
func loadAccounts(v *viper.Viper) ([]commenter.Account, error) {
	raw := v.GetString("accounts.cookies")
	if file := v.GetString("accounts.cookie_file"); file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			raw = string(data)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read cookie file: %w", err)
		}
	}

	var accounts []commenter.Account
	for _, c := range splitList(strings.ReplaceAll(raw, "\n", "&"), "&") {
		accounts = append(accounts, commenter.Account{
			Label:  fmt.Sprintf("account-%d", len(accounts)+1),
			Cookie: c,
		})
	}
	return accounts, nil
}

func commentSettings(v *viper.Viper) (commenter.Settings, error) {
	lo, hi, err := parseRange(v.GetString("comment.cooldown"))
	if err != nil {
		return commenter.Settings{}, fmt.Errorf("comment.cooldown: %w", err)
	}
	readLo, readHi, err := parseRange(v.GetString("comment.read_delay"))
	if err != nil {
		return commenter.Settings{}, fmt.Errorf("comment.read_delay: %w", err)
	}
	return commenter.Settings{
		CategorySlug: v.GetString("comment.category"),
		ThreadURLs:   splitList(strings.ReplaceAll(v.GetString("comment.thread_urls"), "\n", ","), ","),
		DailyLimit:   v.GetInt("comment.daily_limit"),
		SampleCount:  v.GetInt("comment.sample_count"),
		MinSample:    v.GetInt("comment.min_sample"),
		Constraints: generator.Constraints{
			MinLength: v.GetInt("comment.min_len"),
			MaxLength: v.GetInt("comment.max_len"),
			Language:  v.GetString("comment.language"),
		},
		Blacklist:    splitList(v.GetString("comment.blacklist"), ","),
		CooldownMin:  seconds(float64(lo)),
		CooldownMax:  seconds(float64(hi)),
		ReadDelayMin: seconds(float64(readLo)),
		ReadDelayMax: seconds(float64(readHi)),
		DryRun:       v.GetBool("comment.dry_run"),
	}, nil
}

func llmSettings(v *viper.Viper) generator.LLMSettings {
	s := generator.LLMSettings{
		Provider: strings.ToLower(v.GetString("llm.provider")),
		Model:    v.GetString("llm.model"),
		APIKey:   v.GetString("llm.api_key"),
		BaseURL:  v.GetString("llm.base_url"),
	}
	if s.APIKey == "" {
		switch s.Provider {
		case "gemini":
			s.APIKey = v.GetString("llm.google_api_key")
		case "openai", "deepseek":
			s.APIKey = v.GetString("llm.openai_api_key")
		}
	}
	return s
}

// parseRange parses "60-180" (seconds). The bounds may be given in either
// order.
func parseRange(s string) (int, int, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("want MIN-MAX, got %q", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("bad lower bound in %q", s)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("bad upper bound in %q", s)
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return max(lo, 0), max(hi, 0), nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
