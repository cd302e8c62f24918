// Package ai wraps the OpenAI compatible APIs used to caption and tag
// uploaded images and to generate new images from a prompt.
package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/PicTag/internal/models"
	"github.com/sashabaranov/go-openai"
)

const maxTokens = 1024

const systemPrompt = `You describe photographs for an image tagging service.
Reply with a JSON object {"caption": string, "tags": [string]}.
The caption is one short English sentence. Tags are 5 to 20 lower-case
English keywords ordered from most to least relevant, without duplicates.`

// Config selects between the public OpenAI API and an Azure OpenAI resource.
type Config struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	ImageModel  string

	AzureKey         string
	AzureEndpoint    string
	AzureAPIVersion  string
	DalleDeployment  string
	VisionDeployment string
}

// Client describes and generates images.
type Client struct {
	*openai.Client
	VisionModel string
	ImageModel  string
}

// NewClient builds a client for Azure when AzureEndpoint is set and for the
// OpenAI API otherwise.
func NewClient(cfg Config) *Client {
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = openai.GPT4o
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}

	var oc openai.ClientConfig
	if cfg.AzureEndpoint != "" {
		oc = openai.DefaultAzureConfig(cfg.AzureKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			oc.APIVersion = cfg.AzureAPIVersion
		}
		deployments := map[string]string{
			imageModel:  cfg.DalleDeployment,
			visionModel: cfg.VisionDeployment,
		}
		oc.AzureModelMapperFunc = func(model string) string {
			if d := deployments[model]; d != "" {
				return d
			}
			return model
		}
	} else {
		oc = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
	}

	return &Client{Client: openai.NewClientWithConfig(oc), VisionModel: visionModel, ImageModel: imageModel}
}

// Describe captions and tags an image.
func (c *Client) Describe(ctx context.Context, image []byte, contentType string) (*models.ImageDescription, error) {
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.ChatCompletionRequest{
		Model:     c.VisionModel,
		MaxTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Describe this image."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion")
	}

	var desc models.ImageDescription
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &desc); err != nil {
		return nil, fmt.Errorf("decode description: %w", err)
	}
	desc.Tags = cleanTags(desc.Tags)
	return &desc, nil
}

// cleanTags trims, lower-cases and de-duplicates tags keeping their order.
func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Generate creates one image and returns its URL and the revised prompt.
// Prompts rejected by the provider's safety system yield models.ErrContentPolicy.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	resp, err := c.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          c.ImageModel,
		N:              1,
		Size:           req.Size,
		Quality:        req.Quality,
		Style:          req.Style,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		if isContentPolicy(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrContentPolicy, err)
		}
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, errors.New("provider returned no image")
	}
	return &models.GenerateResult{
		ImageURL:      resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}

func isContentPolicy(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && fmt.Sprint(apiErr.Code) == "content_policy_violation" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "content_policy_violation")
}
