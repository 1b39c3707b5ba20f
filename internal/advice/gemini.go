// Package advice asks a generative model for a first-pass symptom assessment.
package advice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"telemed-server/internal/apperrors"
)

const promptTemplate = `You are an intelligent health assistant.

The user has provided:
- Age: %s
- Gender: %s
- Health Description: "%s"

Your tasks:
1. Identify the user's key symptoms from the description.
2. Based on the symptoms, age, and gender, return a list of likely diseases or conditions with probability (each with %%).
3. Give at least two pieces of general health advice.
4. Recommend what type of doctor the user should consult.

Return your response in EXACTLY the following JSON format:
{
  "symptoms": ["symptom1", "symptom2", ...],
  "conditions": [
    {"name": "Disease Name", "probability": "XX%%"},
    ...
  ],
  "advice": [
    "Advice 1",
    "Advice 2"
  ],
  "doctor": "Specialist type"
}

Do NOT include any extra text or explanation, only respond with clean JSON.
`

// Request is what the user tells us about themselves.
type Request struct {
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
}

type Condition struct {
	Name        string `json:"name"`
	Probability string `json:"probability"`
}

// Assessment is the structured answer the prompt asks for.
type Assessment struct {
	Symptoms   []string    `json:"symptoms"`
	Conditions []Condition `json:"conditions"`
	Advice     []string    `json:"advice"`
	Doctor     string      `json:"doctor"`
}

// Result carries the model's raw text and, when it parsed, the structured form.
type Result struct {
	Raw        string      `json:"raw"`
	Assessment *Assessment `json:"assessment,omitempty"`
}

// Prompt fills the template, substituting defaults for missing fields.
func Prompt(req Request) string {
	age := strings.TrimSpace(req.Age)
	if age == "" {
		age = "unknown"
	}
	gender := strings.TrimSpace(req.Gender)
	if gender == "" {
		gender = "unknown"
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "none"
	}
	return fmt.Sprintf(promptTemplate, age, gender, description)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GeminiClient calls the generateContent endpoint.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewGeminiClient(apiKey, model, baseURL string, timeout time.Duration, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

func (c *GeminiClient) Advise(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(req)}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: 2048,
		},
	})
	if err != nil {
		return nil, apperrors.Internal(err, "encode advice request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(err, "build advice request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Error("GeminiClient.Advise request failed", zap.Error(err))
		return nil, apperrors.ExternalService(err, "API request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalService(err, "API request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("GeminiClient.Advise upstream error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, apperrors.ExternalService(fmt.Errorf("status %d", resp.StatusCode), "API request failed")
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.ExternalService(err, "Failed to get medical advice")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.ExternalService(nil, "No response generated")
	}

	text := out.Candidates[0].Content.Parts[0].Text
	return &Result{Raw: text, Assessment: parseAssessment(text)}, nil
}

// parseAssessment accepts bare JSON or JSON wrapped in a markdown code fence.
func parseAssessment(text string) *Assessment {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var a Assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &a); err != nil {
		return nil
	}
	return &a
}
