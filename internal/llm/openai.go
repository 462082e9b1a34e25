package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"taskmind/internal/copilot"
	"taskmind/pkg/audioconv"
)

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.ChatModelGPT4o,
		Temperature: 0.3,
		MaxTokens:   300,
	}
}

// Client is the OpenAI collaborator: chat completions for answers and
// the audio endpoint for remote transcription.
type Client struct {
	api openai.Client
	cfg Config
}

func NewClient(apiKey string, cfg Config, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		api: openai.NewClient(opts...),
		cfg: cfg,
	}
}

// responseSchema constrains the completion to the copilot response
// shape. answer and confidence are required; the rest is optional.
var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{
			"type":        "string",
			"description": "Clear, concise answer to the question",
		},
		"confidence": map[string]any{
			"type":        "number",
			"description": "Confidence level (0-1) in the response",
		},
		"suggestedActions": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Optional follow-up actions",
		},
		"relatedTasks": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "object"},
			"description": "Related tasks from the board",
		},
	},
	"required": []string{"answer", "confidence"},
}

// Complete sends system + history + user turn. In structured mode the
// response is schema-constrained JSON; otherwise plain text.
func (c *Client) Complete(ctx context.Context, req copilot.CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	msgs = append(msgs, openai.SystemMessage(req.System))
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
	}

	if req.Structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "copilot_response",
					Description: openai.String("Structured response to the meeting question"),
					Schema:      responseSchema,
				},
			},
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// Transcribe sends a PCM window to the hosted whisper model. Empty
// text is a valid result for silent audio.
func (c *Client) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	wav, err := audioconv.EncodeWAV16k(pcm)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:    openai.AudioModelWhisper1,
		Language: openai.String("en"),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	return resp.Text, nil
}
