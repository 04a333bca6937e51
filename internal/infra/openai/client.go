package openai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"personality-quiz-service/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// Config holds the OpenAI connection settings. BaseURL allows routing to
// OpenAI-compatible providers.
type Config struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
}

// Client implements both app.Transcriber and app.ScoreProvider on the
// OpenAI API: Whisper for speech-to-text, a chat model for facet scoring.
type Client struct {
	api                *openai.Client
	chatModel          string
	transcriptionModel string
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	transcriptionModel := cfg.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = openai.Whisper1
	}

	return &Client{
		api:                openai.NewClientWithConfig(clientCfg),
		chatModel:          chatModel,
		transcriptionModel: transcriptionModel,
	}, nil
}

// Transcribe converts the audio file at audioPath to text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	return resp.Text, nil
}

const scoreSystemPrompt = `You are a personality assessor. The user answered an interview question measuring the personality facet %q. Rate how strongly the answer expresses that facet on a scale from 1 (very weak) to 5 (very strong). Respond with a single integer between 1 and 5 and nothing else.`

// ScoreFacet asks the chat model to rate the transcript against a facet.
// Replies that are not an integer in [1,5] are rejected, never clamped.
func (c *Client) ScoreFacet(ctx context.Context, transcript, facet string) (int, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0,
		MaxTokens:   4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(scoreSystemPrompt, facet)},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no choices in completion response")
	}
	return parseScore(resp.Choices[0].Message.Content)
}

func parseScore(reply string) (int, error) {
	score, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, fmt.Errorf("%w: model replied %q", domain.ErrInvalidScore, reply)
	}
	if score < 1 || score > 5 {
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidScore, score)
	}
	return score, nil
}
