package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modfin/ashle/internal/chat"
	"github.com/modfin/ashle/internal/db"
	"github.com/modfin/ashle/internal/sanitize"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/henry/slicez"
)

const SystemPrompt = "You are a helpful and accurate SRHR and health assistant. " +
	"If unsure, say 'I'm not sure.'"

// CautionNote is shown to the user before a conversation starts.
const CautionNote = "Note: this assistant is still under development and may not give accurate answers. " +
	"Do not rely on it alone for medical decisions. " +
	"Always consult a qualified healthcare professional for critical health issues."

var ErrEmptyQuestion = errors.New("question is empty")

// GenerateFunc produces raw model text for a conversation.
type GenerateFunc func(ctx context.Context, system string, prompts []prompt.Prompt) (string, error)

// RetrieveFunc finds knowledge base passages relevant to a question.
type RetrieveFunc func(ctx context.Context, question string) ([]db.Passage, error)

// QuestionPrompt formats a question the way the model was tuned on, ending
// with the separator the answer follows.
func QuestionPrompt(question, separator string) string {
	return "Q: " + question + " " + separator
}

// Prompt is the full single-string prompt for completion style models.
func Prompt(question, separator string) string {
	return SystemPrompt + "\n\n" + QuestionPrompt(question, separator)
}

type Reply struct {
	Answer   string
	Result   sanitize.Result
	Passages []db.Passage
	Took     time.Duration
}

type Bot struct {
	Generate  GenerateFunc
	Retrieve  RetrieveFunc
	Sanitizer *sanitize.Sanitizer
	Separator string

	// HistoryTurns is how many earlier turns are sent along with a question.
	HistoryTurns int

	Logger *slog.Logger
	Now    func() time.Time
}

func (b *Bot) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *Bot) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Ask answers question in the context of log and returns log extended with
// the question and the sanitized answer. On error the log is returned as is.
func (b *Bot) Ask(ctx context.Context, log chat.Log, question string) (chat.Log, Reply, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return log, Reply{}, ErrEmptyQuestion
	}

	var reply Reply
	if b.Retrieve != nil {
		passages, err := b.Retrieve(ctx, question)
		if err != nil {
			return log, Reply{}, fmt.Errorf("failed to retrieve passages: %w", err)
		}
		reply.Passages = passages
	}

	prompts := b.prompts(log, question, reply.Passages)

	raw, err := b.Generate(ctx, SystemPrompt, prompts)
	if err != nil {
		return log, Reply{}, fmt.Errorf("failed to generate response: %w", err)
	}

	reply.Result = b.Sanitizer.Apply(raw)
	reply.Answer = reply.Result.Answer
	reply.Took = time.Since(start)

	if reply.Result.Flagged {
		b.logger().Warn("answer replaced by fallback",
			"conversation", log.ID,
			"detector", reply.Result.Detector,
			"matches", reply.Result.Matches,
		)
	}
	b.logger().Debug("answered",
		"conversation", log.ID,
		"passages", len(reply.Passages),
		"raw-len", len(raw),
		"answer-len", len(reply.Answer),
		"took", reply.Took,
	)

	now := b.now()
	log = log.Append(
		chat.Turn{Role: chat.UserRole, Text: question, CreatedAt: now},
		chat.Turn{Role: chat.BotRole, Text: reply.Answer, Raw: raw, Flagged: reply.Result.Flagged, CreatedAt: now},
	)
	return log, reply, nil
}

func (b *Bot) prompts(log chat.Log, question string, passages []db.Passage) []prompt.Prompt {
	docs := slicez.Map(passages, func(p db.Passage) prompt.Prompt {
		return prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<%s-document> %s </%s-document>", p.Label, p.Content, p.Label),
		}
	})

	history := slicez.Map(log.Recent(b.HistoryTurns), func(t chat.Turn) prompt.Prompt {
		if t.Role == chat.BotRole {
			return prompt.Prompt{Role: prompt.AssistantRole, Text: t.Text}
		}
		return prompt.Prompt{Role: prompt.UserRole, Text: QuestionPrompt(t.Text, b.Separator)}
	})

	prompts := append(docs, history...)
	return append(prompts, prompt.Prompt{
		Role: prompt.UserRole,
		Text: QuestionPrompt(question, b.Separator),
	})
}
