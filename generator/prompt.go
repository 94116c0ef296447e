package generator

import (
	"fmt"
	"strings"
)

const (
	maxPromptComments     = 6
	maxPromptCommentRunes = 300
	maxPromptOPRunes      = 500
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System string
	User   string
}

var languageNames = map[string]string{
	"zh": "Simplified Chinese",
	"en": "English",
	"ja": "Japanese",
}

func languageName(tag string) string {
	if name, ok := languageNames[strings.ToLower(tag)]; ok {
		return name
	}
	if tag == "" {
		return languageNames["zh"]
	}
	return tag
}

// BuildReplyPrompt 根据帖子上下文生成回复提示词。
func BuildReplyPrompt(thread Thread, c Constraints) Prompt {
	var sys strings.Builder
	sys.WriteString("You are taking part in a forum discussion. Write one reply to the thread below.\n")
	sys.WriteString("Rules:\n")
	sys.WriteString(fmt.Sprintf("- Write in %s.\n", languageName(c.Language)))
	if c.MinLength > 0 && c.MaxLength > 0 {
		sys.WriteString(fmt.Sprintf("- Length: %d to %d characters.\n", c.MinLength, c.MaxLength))
	} else if c.MaxLength > 0 {
		sys.WriteString(fmt.Sprintf("- At most %d characters.\n", c.MaxLength))
	}
	sys.WriteString("- Match the tone of the existing replies and add something useful: an opinion, an experience or a suggestion.\n")
	sys.WriteString("- No links, ads, contact details, @mentions or private information. Do not ask anyone to message you.\n")
	sys.WriteString("- Do not repeat large parts of the original post.\n")
	sys.WriteString("- Plain text only: no markdown, no headings, no prefix or explanation.\n")

	var user strings.Builder
	user.WriteString("Title: ")
	user.WriteString(thread.Title)
	user.WriteString("\n")
	user.WriteString("Original post: ")
	user.WriteString(truncate(thread.OPSummary, maxPromptOPRunes))
	user.WriteString("\n")
	for i, comment := range thread.Comments {
		if i == maxPromptComments {
			break
		}
		user.WriteString(fmt.Sprintf("\nReply %d: %s\n", i+1, truncate(comment, maxPromptCommentRunes)))
	}

	return Prompt{
		System: sys.String(),
		User:   user.String(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
