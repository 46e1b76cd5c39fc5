package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o"
	requestTimeout       = 60 * time.Second

	// maxToolRounds bounds one utterance's completion/tool cycle so a
	// model stuck re-calling tools cannot spin forever.
	maxToolRounds = 5
)

// The response is synthesized to audio, so the prompt forbids anything
// that reads badly out loud.
const systemPrompt = `Tu es un assistant de réservation de rendez-vous sur Google Calendar dans un appel WebRTC.

Quand on te donne les détails de la réservation, tu dois faire appel à la fonction "make_calendar_reservation" pour créer la réservation ou "update_calendar_reservation" pour mettre à jour la réservation.
Tu as également la possibilité de faire appel à la fonction "get_current_date" pour obtenir la date et l'heure actuelles.

Ta réponse sera convertie en audio et diffusée à l'utilisateur donc n'inclut pas de caractères spéciaux dans ta réponse.`

// EngineConfig configures the dialogue engine.
type EngineConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Engine runs the per-session dialogue loop: a transcribed utterance
// goes in, tool calls are resolved through the Dispatcher, and the
// spoken reply comes out. One Engine serves one session; the bot run
// loop calls it sequentially, so tool calls complete in emission order.
type Engine struct {
	client     openaigo.Client
	model      string
	dispatcher *Dispatcher
	tools      []openaigo.ChatCompletionToolUnionParam
	messages   []openaigo.ChatCompletionMessageParamUnion
}

// NewEngine creates a dialogue engine seeded with the system prompt and
// the calendar tool declarations.
func NewEngine(cfg EngineConfig, dispatcher *Dispatcher) (*Engine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}

	tools, err := openaiTools()
	if err != nil {
		return nil, fmt.Errorf("declare tools: %w", err)
	}

	client := openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
	)

	return &Engine{
		client:     client,
		model:      cfg.Model,
		dispatcher: dispatcher,
		tools:      tools,
		messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(systemPrompt),
		},
	}, nil
}

// HandleUtterance feeds one final transcript into the conversation and
// returns the assistant's spoken reply, resolving any tool calls the
// model emits along the way.
func (e *Engine) HandleUtterance(ctx context.Context, text string) (string, error) {
	e.messages = append(e.messages, openaigo.UserMessage(text))

	for round := 0; round <= maxToolRounds; round++ {
		resp, err := e.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
			Model:    openaigo.ChatModel(e.model),
			Messages: e.messages,
			Tools:    e.tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			e.messages = append(e.messages, openaigo.AssistantMessage(msg.Content))
			return msg.Content, nil
		}

		e.messages = append(e.messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			if strings.TrimSpace(tc.Type) != "function" {
				b, _ := json.Marshal(tc)
				e.messages = append(e.messages, openaigo.ToolMessage(string(b), tc.ID))
				continue
			}

			call := tc.AsFunction()
			slog.Info("Dispatching tool call", "tool", call.Function.Name, "tool_call_id", tc.ID)

			payload := e.dispatcher.Dispatch(ctx, ToolCall{
				ID:        tc.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})

			// Exactly one tool message per tool call, whatever happened.
			b, err := json.Marshal(payload)
			if err != nil {
				b = []byte(`{"status":"error","message":"failed to encode tool result"}`)
			}
			e.messages = append(e.messages, openaigo.ToolMessage(string(b), tc.ID))
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}
