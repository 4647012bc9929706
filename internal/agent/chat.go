package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/schemacall"
	"github.com/coderforge/solverd/internal/task"
)

// Chat answers one-off conversational messages, optionally grounded in
// a task's requirements and generated code.
type Chat struct {
	base
}

// NewChat creates the conversational agent.
func NewChat(caller *schemacall.Caller, logger *zap.Logger) *Chat {
	return &Chat{base: newBase("chat", task.PhaseGenerating, caller, logger)}
}

// Reply answers a single user message. tc may be nil for context-free
// conversations.
func (c *Chat) Reply(ctx context.Context, tc *task.Context, message string) *schemacall.Artifact {
	var b strings.Builder
	b.WriteString("You are a helpful programming assistant. Answer the user's message clearly and concisely.\n\n")
	if tc != nil {
		fmt.Fprintf(&b, "The user is working on a %s task with these requirements:\n%s\n\n", tc.Language, tc.FullRequirements())
		if code := tc.Artifact(task.PhaseGenerating); code != nil {
			if body := code.String(FieldCode); body != "" {
				fmt.Fprintf(&b, "Current solution code:\n```%s\n%s\n```\n\n", tc.Language, body)
			}
		}
	}
	fmt.Fprintf(&b, "USER MESSAGE:\n%s\n\n", message)
	b.WriteString("If the best answer includes code, put it in the code field and set type to \"code\"; otherwise leave code empty and set type to \"text\".\n")
	b.WriteString("Structure your response as a JSON object for easy parsing.\n")

	artifact := c.call(ctx, b.String(), ChatSchema())
	if artifact.Degraded {
		c.logger.Warn("chat reply degraded")
		artifact.Fields[FieldMessage] = "Sorry, I could not produce an answer right now. Please try again."
	}
	if code := artifact.String(FieldCode); code != "" {
		artifact.Fields[FieldCode] = StripMarkdownCodeBlock(code)
		artifact.Fields["type"] = "code"
	}
	return artifact
}
