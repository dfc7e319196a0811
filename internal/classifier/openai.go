package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/domain"
)

const systemPrompt = `You are a triage assistant for a SAP support desk.
Given an inbound email, decide whether it describes a SAP system issue and respond with ONLY a JSON object:
{
  "is_sap_related": bool,
  "confidence": float between 0.0 and 1.0,
  "category": one of MM, SD, FICO, PP, HCM, PM, QM, WM, PS, BW, ABAP, BASIS, OTHER,
  "suggested_title": short one-line summary,
  "suggested_priority": one of Low, Medium, High, Critical,
  "key_points": array of short strings
}
Newsletters, marketing, out-of-office replies and personal mail are not SAP related.`

const maxBodyChars = 6000

// OpenAIClassifier classifies emails through the chat completions API.
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

// NewOpenAIClassifier builds a classifier against the OpenAI API.
func NewOpenAIClassifier(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration, logger *zap.Logger) *OpenAIClassifier {
	return &OpenAIClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		logger:      logger,
	}
}

type llmVerdict struct {
	IsSAPRelated      bool     `json:"is_sap_related"`
	Confidence        float64  `json:"confidence"`
	Category          string   `json:"category"`
	SuggestedTitle    string   `json:"suggested_title"`
	SuggestedPriority string   `json:"suggested_priority"`
	KeyPoints         []string `json:"key_points"`
}

// Classify sends the email to the model and parses its JSON verdict. A
// response the model returns but we cannot parse degrades to a low-confidence
// "not related" result rather than an error; transport failures are errors.
func (c *OpenAIClassifier) Classify(ctx context.Context, in Input) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("From: %s\nSubject: %s\n\n%s",
		in.From, in.Subject, truncateBody(in.BodyText, maxBodyChars))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm classify: empty response")
	}

	content := resp.Choices[0].Message.Content
	return c.parseVerdict(content), nil
}

func (c *OpenAIClassifier) parseVerdict(content string) *Result {
	raw := map[string]any{"model_output": content}

	var verdict llmVerdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil {
		c.logger.Warn("unparseable classifier output, treating as unrelated",
			zap.Error(err))
		return &Result{IsSAPRelated: false, Confidence: 0.0, Category: string(domain.CategoryOther), Raw: raw}
	}

	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}

	category := strings.ToUpper(strings.TrimSpace(verdict.Category))
	if !domain.ValidCategory(domain.TicketCategory(category)) {
		category = string(domain.CategoryOther)
	}

	priority := normalizePriority(verdict.SuggestedPriority)

	return &Result{
		IsSAPRelated:      verdict.IsSAPRelated,
		Confidence:        verdict.Confidence,
		Category:          category,
		SuggestedTitle:    strings.TrimSpace(verdict.SuggestedTitle),
		SuggestedPriority: priority,
		KeyPoints:         verdict.KeyPoints,
		Raw:               raw,
	}
}

func normalizePriority(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return string(domain.TicketPriorityLow)
	case "high":
		return string(domain.TicketPriorityHigh)
	case "critical":
		return string(domain.TicketPriorityCritical)
	default:
		return string(domain.TicketPriorityMedium)
	}
}

// truncateBody caps the body at max bytes, backing off to the nearest rune
// boundary so the API never receives invalid UTF-8.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}
