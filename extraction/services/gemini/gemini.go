// Package gemini extracts timetable text from an image by asking the
// Gemini vision endpoint for a schema constrained transcription of the
// grid. It is one concrete engine behind the extraction service boundary;
// nothing outside this package knows the tokens came from a model.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services"
	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.5-flash"
	apiKeyEnv       = "GEMINI_API_KEY"

	systemInstruction = "You are an expert timetable reader. Transcribe every cell " +
		"of the provided timetable image. Return a single JSON array where each " +
		"element is one cell: 'text' is the cell content exactly as written, 'row' " +
		"counts grid rows from 0 top down, 'col' counts grid columns from 0 left to " +
		"right. Include day name headers as their own cells."
	userPrompt = "Transcribe the time table grid from this image into positioned text cells."
)

type Gemini struct {
	endpoint string
	model    string
	// apiKey overrides the environment lookup, only set from tests
	apiKey string

	RequestRetryCount int
	rateLimiter       services.RateLimiter
}

// GetDefaultService returns a gemini service with production settings.
// Callers keep their own instance so tests can repoint the endpoint
// without racing each other.
func GetDefaultService() *Gemini {
	return &Gemini{
		endpoint:          defaultEndpoint,
		model:             defaultModel,
		RequestRetryCount: 2,
		rateLimiter: services.NewAdaptiveRateLimiter(
			rate.Every(500*time.Millisecond), 2, rate.Every(time.Second)),
	}
}

func (g *Gemini) GetName() string { return "Gemini" }

// SetEndpoint points the service somewhere else e.g. a mock server.
func (g *Gemini) SetEndpoint(url string) {
	g.endpoint = strings.TrimSuffix(url, "/")
}

func (g *Gemini) SetAPIKey(key string) {
	g.apiKey = key
}

func (g *Gemini) SetModel(model string) {
	g.model = model
}

// request/response shapes for generateContent, only the fields we touch

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents          []content      `json:"contents"`
	SystemInstruction *content       `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractTokens sends the image to generateContent and decodes the
// positioned cells out of the response. Any failure comes back wrapped as
// services.ErrExtraction; the call is never re-run as a whole.
func (g *Gemini) ExtractTokens(
	logger log.Entry,
	ctx context.Context,
	image []byte,
	mimeType string,
) ([]timetable.Token, error) {
	apiKey := g.apiKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w %s is not configured", services.ErrIncorrectAssumption, apiKeyEnv)
	}

	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []contentPart{
				{Text: userPrompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		SystemInstruction: &content{Parts: []contentPart{{Text: systemInstruction}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
						"row":  map[string]any{"type": "integer"},
						"col":  map[string]any{"type": "integer"},
					},
					"required": []string{"text", "row", "col"},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", services.ErrExtraction, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.endpoint, g.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrExtraction, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := services.NewRetryClientWithLimiter(&logger, g.RequestRetryCount, g.rateLimiter)
	resp, respErr := client.Do(req)
	if respErr == nil {
		defer resp.Body.Close()
	}
	if err := services.RespOrStatusErr(resp, respErr); err != nil {
		logger.Error("gemini request failed: ", err)
		return nil, fmt.Errorf("%w: %w", services.ErrExtraction, err)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", services.ErrExtraction, err)
	}
	text := firstText(decoded)
	if text == "" {
		return nil, fmt.Errorf("%w engine response was empty or malformed", services.ErrExtraction)
	}

	var tokens []timetable.Token
	if err := json.Unmarshal([]byte(stripFences(text)), &tokens); err != nil {
		logger.Error("could not decode cells: ", err)
		return nil, fmt.Errorf("%w: decoding cells: %w", services.ErrExtraction, err)
	}

	// the model mostly emits reading order already but don't rely on it
	slices.SortStableFunc(tokens, func(a, b timetable.Token) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	logger.Infof("extracted %d cells", len(tokens))
	return tokens, nil
}

func firstText(resp generateResponse) string {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// stripFences cleans up the markdown fences the model sometimes wraps
// around its json in spite of the response mime type
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
