package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct {
	// Reply is returned verbatim when set.
	Reply string
}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	if m.Reply != "" {
		return m.Reply, nil
	}
	var sb strings.Builder
	sb.WriteString("**[draft]** ")
	for _, line := range strings.Split(prompt.User, "\n") {
		if title, ok := strings.CutPrefix(line, "Title: "); ok {
			sb.WriteString("Thoughts on ")
			sb.WriteString(title)
			sb.WriteString(".")
			break
		}
	}
	return sb.String(), nil
}
