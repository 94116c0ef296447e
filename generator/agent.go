package generator

import (
	"context"
	"errors"
)

// Agent 负责根据帖子上下文生成回复。
type Agent struct {
	llm LLMClient
}

func NewAgent(llm LLMClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm}, nil
}

// Reply returns a plain-text reply to thread within the constraints.
func (a *Agent) Reply(ctx context.Context, thread Thread, c Constraints) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildReplyPrompt(thread, c))
	if err != nil {
		return "", err
	}
	return PostProcess(raw, c)
}
