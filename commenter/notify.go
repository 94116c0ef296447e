package commenter

import (
	"context"

	"go.uber.org/zap"
)

// Notifier 接收可读的运行事件（发帖成功、失败、草稿）。
type Notifier interface {
	Notify(ctx context.Context, title, body string)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) {}

// LogNotifier 把事件写入 zap 日志。
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, title, body string) {
	n.Logger.Info(title, zap.String("body", body))
}
