package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/model/chat"
)

// HistoryLimit caps how many past turns are forwarded to the model.
const HistoryLimit = 10

// ErrEmptyCompletion is returned when the model produced no message.
var ErrEmptyCompletion = errors.New("completion returned no message")

// Prompt is the input of a single completion call.
type Prompt struct {
	// System is the leading system message.
	System string
	// Context holds extra system messages placed right after System.
	Context []string
	History []chat.Turn
	Query   string
}

// Service encapsulates the chat-completion call.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    *zap.Logger
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.ChatModel, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("context", true),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		logger:    logger,
	}, nil
}

// GenerateResponse runs one completion and returns the first choice.
func (s *Service) GenerateResponse(ctx context.Context, p Prompt) (*schema.Message, error) {
	input := buildChainInput(p)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return nil, ErrEmptyCompletion
	}

	s.logger.Debug("generated response",
		zap.Int("history", len(input["history"].([]*schema.Message))),
		zap.Int("context", len(p.Context)),
		zap.Int("length", len(response.Content)),
	)
	return response, nil
}

func buildChainInput(p Prompt) map[string]any {
	contextMessages := make([]*schema.Message, 0, len(p.Context))
	for _, content := range p.Context {
		contextMessages = append(contextMessages, schema.SystemMessage(content))
	}

	return map[string]any{
		"system":  p.System,
		"context": contextMessages,
		"history": buildHistoryMessages(p.History),
		"query":   p.Query,
	}
}

// buildHistoryMessages keeps the last HistoryLimit turns in order.
func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	startIdx := 0
	if len(turns) > HistoryLimit {
		startIdx = len(turns) - HistoryLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		if turn.Sender == chat.SenderUser {
			history = append(history, schema.UserMessage(turn.Text))
			continue
		}
		history = append(history, schema.AssistantMessage(turn.Text, nil))
	}

	return history
}
