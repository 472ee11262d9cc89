package conversation

import (
	"context"
	"time"

	"github.com/smileright/dental-frontdesk/pkg/logging"
)

const frontDeskSystemPrompt = `You are Alex, the voice receptionist at SmileRight Dental Clinic.
You speak in short, warm sentences suitable for text-to-speech.
You will be given the utterance the front desk decided to say next.
Rephrase it naturally for speech. Never change names, phone numbers, dates,
times, prices, or durations. Never invent availability or medical advice.
Reply with the utterance only.`

// UtterancePlanner turns the machine's scripted utterance into what is
// actually spoken. The scripted text is always the fallback, so a planner
// failure or timeout can never hang or derail a call.
type UtterancePlanner interface {
	Plan(ctx context.Context, history []ChatMessage, scripted string) string
}

// ScriptedPlanner speaks the machine's utterances verbatim. It is the
// default when no LLM is configured and keeps tests deterministic.
type ScriptedPlanner struct{}

func (ScriptedPlanner) Plan(_ context.Context, _ []ChatMessage, scripted string) string {
	return scripted
}

// LLMPlanner rephrases scripted utterances through a language model, bounded
// by a timeout.
type LLMPlanner struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLMPlanner wires an LLM-backed planner.
func NewLLMPlanner(client LLMClient, model string, timeout time.Duration, logger *logging.Logger) *LLMPlanner {
	if client == nil {
		panic("conversation: llm client required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMPlanner{client: client, model: model, timeout: timeout, logger: logger.Component("planner")}
}

// Plan asks the model to rephrase the scripted utterance. Any failure,
// including a timeout, falls back to the scripted text.
func (p *LLMPlanner) Plan(ctx context.Context, history []ChatMessage, scripted string) string {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: "Next utterance: " + scripted})

	resp, err := p.client.Complete(ctx, LLMRequest{
		Model:       p.model,
		System:      []string{frontDeskSystemPrompt},
		Messages:    messages,
		MaxTokens:   200,
		Temperature: 0.4,
	})
	if err != nil || resp.Text == "" {
		p.logger.Warn("utterance planning failed, using scripted text", "error", err)
		return scripted
	}
	return resp.Text
}
