package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

type Config struct {
	APIKey     string
	BaseURL    string
	GenModel   string
	EmbedModel string
}

// Client wraps the OpenAI API for the two model-backed concerns: grounded
// answer generation and query embedding for the semantic source.
type Client struct {
	api        *goopenai.Client
	genModel   string
	embedModel string
}

func New(cfg Config) *Client {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	genModel := cfg.GenModel
	if genModel == "" {
		genModel = goopenai.GPT4oMini
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = string(goopenai.SmallEmbedding3)
	}

	return &Client{
		api:        goopenai.NewClientWithConfig(clientConfig),
		genModel:   genModel,
		embedModel: embedModel,
	}
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.FusedResult, guidance string) (*domain.Answer, error) {
	resp, err := g.client.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: g.client.genModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: buildAnswerPrompt(question, chunks, guidance)},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var answer domain.Answer
	raw := extractJSONObject(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, fmt.Errorf("parse answer json: %w", err)
	}
	if answer.Citations == nil {
		answer.Citations = []domain.Citation{}
	}
	return &answer, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(e.client.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return resp.Data[0].Embedding, nil
}

// extractJSONObject trims whatever the model wrapped around the object,
// usually markdown fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
