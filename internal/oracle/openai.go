package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI compatible classifier.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at an OpenAI compatible endpoint; empty uses OpenAI.
	BaseURL string
	Model   string
}

// OpenAI classifies messages with chat completions function calling.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI classifier.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// The caller's timeout bounds all attempts together.
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

// Classify asks the model to call exactly one capability.
func (o *OpenAI) Classify(ctx context.Context, req Request) (Decision, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req)),
	}
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))

	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(req.Capabilities))
	for _, c := range req.Capabilities {
		tools = append(tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        c.Name,
			Description: openai.String(c.Description),
			Parameters:  openai.FunctionParameters(c.Parameters),
		}))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:             openai.ChatModel(o.model),
		Messages:          messages,
		Tools:             tools,
		ToolChoice:        openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")},
		ParallelToolCalls: openai.Bool(false),
		Temperature:       openai.Float(0),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to classify message: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, nil
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return Decision{}, nil
	}

	args := strings.TrimSpace(calls[0].Function.Arguments)
	if args == "" {
		args = "{}"
	}
	return Decision{Capability: calls[0].Function.Name, Arguments: json.RawMessage(args)}, nil
}

func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a scheduling assistant that finds free time and books meetings on the user's calendar. ")
	b.WriteString("Choose exactly one tool for the user's latest message.\n")
	fmt.Fprintf(&b, "Current time: %s (%s).\n", req.Now.Format(time.RFC1123), req.Timezone)
	fmt.Fprintf(&b, "Conversation state: %s. Slots currently offered: %d.\n", req.State, req.OfferedSlots)
	b.WriteString("Pass dates as short phrases such as 'tomorrow afternoon', 'next friday at 3pm' or ISO dates (YYYY-MM-DD). ")
	b.WriteString("When slots are offered and the user picks one, call book_meeting with slot_number. ")
	b.WriteString("When a booking awaits confirmation, call book_meeting with confirmed true or false.")
	return b.String()
}
