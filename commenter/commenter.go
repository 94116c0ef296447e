// Package commenter drives one account through a reply session: choose
// threads, read them, draft a reply and post it within the daily quota.
package commenter

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bw4243/NodeSeek-Signin/forum"
	"github.com/bw4243/NodeSeek-Signin/generator"
	"github.com/bw4243/NodeSeek-Signin/history"
)

// Forum is the part of forum.Client the runner uses.
type Forum interface {
	ListThreads(ctx context.Context, categorySlug string, page int) ([]forum.ThreadRef, error)
	FetchContext(ctx context.Context, threadURL string, sampleSize int) (forum.ThreadContext, error)
	Submit(ctx context.Context, threadURL, content, token string) (forum.SubmitResult, error)
}

// Writer 负责起草回复。
type Writer interface {
	Reply(ctx context.Context, thread generator.Thread, c generator.Constraints) (string, error)
}

// History 记录每日配额。
type History interface {
	Count(account, day string) int
	RecordSuccess(account, day, threadURL string) error
}

// Account is one forum login.
type Account struct {
	Label  string
	Cookie string
}

// Settings control a run.
type Settings struct {
	CategorySlug string
	// ThreadURLs, when set, replace the category listing.
	ThreadURLs  []string
	DailyLimit  int
	SampleCount int
	// MinSample skips threads with fewer peer replies than this.
	MinSample   int
	Constraints generator.Constraints
	Blacklist   []string
	CooldownMin time.Duration
	CooldownMax time.Duration
	// 起草回复前在帖子上停留的时长范围。
	ReadDelayMin time.Duration
	ReadDelayMax time.Duration
	DryRun       bool
}

// DefaultSettings 返回保守的默认配置（dry run，不真正发帖）。
func DefaultSettings() Settings {
	return Settings{
		CategorySlug: "review",
		DailyLimit:   2,
		SampleCount:  6,
		MinSample:    2,
		Constraints:  generator.DefaultConstraints(),
		Blacklist:    []string{"广告", "推广", "微信", "钉钉"},
		CooldownMin:  60 * time.Second,
		CooldownMax:  180 * time.Second,
		ReadDelayMin: 8 * time.Second,
		ReadDelayMax: 18 * time.Second,
		DryRun:       true,
	}
}

// Runner executes Settings for accounts.
type Runner struct {
	settings Settings
	writer   Writer
	history  History
	notifier Notifier
	logger   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires a Runner. notifier and logger may be nil.
func NewRunner(settings Settings, writer Writer, hist History, notifier Notifier, logger *zap.Logger) (*Runner, error) {
	if writer == nil {
		return nil, errors.New("commenter: writer is required")
	}
	if hist == nil {
		return nil, errors.New("commenter: history is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if settings.CooldownMin > settings.CooldownMax {
		settings.CooldownMin, settings.CooldownMax = settings.CooldownMax, settings.CooldownMin
	}
	if settings.ReadDelayMin > settings.ReadDelayMax {
		settings.ReadDelayMin, settings.ReadDelayMax = settings.ReadDelayMax, settings.ReadDelayMin
	}
	return &Runner{
		settings: settings,
		writer:   writer,
		history:  hist,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Run processes a single account with client. It returns an error only for
// problems that stop the account early (blocked session, listing failure,
// cancelled context); per-thread failures are logged and skipped.
func (r *Runner) Run(ctx context.Context, account Account, client Forum) error {
	log := r.logger.With(zap.String("account", account.Label))
	day := history.Day(r.now())
	sent := r.history.Count(account.Label, day)
	if sent >= r.settings.DailyLimit && !r.settings.DryRun {
		log.Info("daily limit reached", zap.Int("limit", r.settings.DailyLimit))
		return nil
	}

	targets, err := r.targets(ctx, client)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		log.Info("no threads to reply to")
		return nil
	}

	for i, target := range targets {
		if !r.settings.DryRun && sent >= r.settings.DailyLimit {
			break
		}
		if i > 0 {
			if err := r.cooldown(ctx, log); err != nil {
				return err
			}
		}
		tlog := log.With(zap.String("thread", target.URL))

		posted, err := r.handle(ctx, tlog, account, client, target, day)
		if err != nil {
			return err
		}
		if posted {
			sent++
		}
	}
	return nil
}

// handle 处理单个帖子；返回非 nil error 时停止该账号。
func (r *Runner) handle(ctx context.Context, log *zap.Logger, account Account, client Forum, target forum.ThreadRef, day string) (bool, error) {
	tc, err := client.FetchContext(ctx, target.URL, r.settings.SampleCount)
	if errors.Is(err, forum.ErrBlocked) {
		log.Warn("session blocked while reading thread; stopping account", zap.Error(err))
		return false, err
	}
	if err != nil {
		log.Warn("fetch thread failed", zap.Error(err))
		return false, ctx.Err()
	}
	if tc.HasCommented {
		log.Info("already replied to this thread; skipping")
		return false, nil
	}
	if len(tc.Comments) < r.settings.MinSample {
		log.Info("too few peer replies; skipping", zap.Int("replies", len(tc.Comments)), zap.Int("min", r.settings.MinSample))
		return false, nil
	}

	if err := r.pause(ctx, log, "reading thread", r.settings.ReadDelayMin, r.settings.ReadDelayMax); err != nil {
		return false, err
	}

	title := tc.Title
	if title == "" {
		title = target.Title
	}
	reply, err := r.writer.Reply(ctx, generator.Thread{
		Title:     title,
		OPSummary: tc.OPSummary,
		Comments:  tc.Comments,
	}, r.settings.Constraints)
	if err != nil {
		log.Warn("draft reply failed", zap.Error(err))
		return false, ctx.Err()
	}
	reply = strings.TrimSpace(reply)
	if !Acceptable(reply, r.settings.Blacklist) {
		log.Info("draft rejected by content filter")
		return false, nil
	}

	if r.settings.DryRun {
		log.Info("dry run: reply not posted", zap.String("reply", reply))
		r.notifier.Notify(ctx, "Reply draft (dry run)", fmt.Sprintf("%s on %s:\n%s", account.Label, title, reply))
		return false, nil
	}

	token := tc.CSRF
	if token == "" {
		// 页面没有令牌时退回 cookie 中的 csrf 值；接口是否接受它尚未验证，
		// 只是比随机占位多一次机会。
		token, _ = forum.CSRFFromCookie(account.Cookie)
	}
	res, err := client.Submit(ctx, target.URL, reply, token)
	if err != nil {
		log.Warn("cannot post reply", zap.Error(err))
		return false, nil
	}
	log.Info("reply submitted", zap.Bool("ok", res.OK), zap.Int("status", res.Status), zap.String("message", res.Message))
	if !res.OK {
		r.notifier.Notify(ctx, "Reply failed", fmt.Sprintf("%s on %s: %s", account.Label, title, res.Message))
		if res.Blocked {
			log.Warn("reply endpoint refused the session; stopping account")
			return false, fmt.Errorf("%w: %s", forum.ErrBlocked, res.Message)
		}
		return false, nil
	}

	if err := r.history.RecordSuccess(account.Label, day, target.URL); err != nil {
		log.Error("record history", zap.Error(err))
	}
	r.notifier.Notify(ctx, "Reply posted", fmt.Sprintf("%s on %s:\n%s", account.Label, title, reply))
	return true, nil
}

func (r *Runner) targets(ctx context.Context, client Forum) ([]forum.ThreadRef, error) {
	if len(r.settings.ThreadURLs) > 0 {
		refs := make([]forum.ThreadRef, 0, len(r.settings.ThreadURLs))
		for _, u := range r.settings.ThreadURLs {
			id, ok := forum.ParseThreadID(u)
			if !ok {
				r.logger.Warn("skipping thread url", zap.String("thread", u), zap.Error(forum.ErrMalformedReference))
				continue
			}
			refs = append(refs, forum.ThreadRef{Title: u, URL: u, ID: id})
		}
		return refs, nil
	}

	refs, err := client.ListThreads(ctx, r.settings.CategorySlug, 1)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	rand.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
	if len(refs) > r.settings.DailyLimit {
		refs = refs[:r.settings.DailyLimit]
	}
	return refs, nil
}

func (r *Runner) cooldown(ctx context.Context, log *zap.Logger) error {
	return r.pause(ctx, log, "waiting before next thread", r.settings.CooldownMin, r.settings.CooldownMax)
}

// pause sleeps for a random duration in [lo, hi]; hi <= 0 disables it.
func (r *Runner) pause(ctx context.Context, log *zap.Logger, why string, lo, hi time.Duration) error {
	if hi <= 0 {
		return nil
	}
	d := max(lo, 0)
	if hi > d {
		d += rand.N(hi - d + 1)
	}
	log.Debug(why, zap.Duration("delay", d))
	return r.sleep(ctx, d)
}

// Acceptable reports whether a drafted reply may be posted: non-empty, no
// blacklisted words, no links and no @mentions.
func Acceptable(text string, blacklist []string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, word := range blacklist {
		if word != "" && strings.Contains(text, word) {
			return false
		}
	}
	if strings.Contains(text, "http://") || strings.Contains(text, "https://") {
		return false
	}
	return !strings.Contains(text, "@")
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
