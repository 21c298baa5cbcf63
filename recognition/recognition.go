// Package recognition is the client for the external handwriting recognition
// service. It submits a PNG crop of the drawing to a Gemini vision model and
// returns the recognized LaTeX as editable text.
package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey   string
	Model    string
	Endpoint string // override for tests; defaults to the Google API host
	Prompt   string // override for the conversion prompt
}

var config *Config

func Init(cfg *Config) {
	config = cfg
}

// Gemini generateContent structures.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	maxRetries      = 3
	initialDelay    = 1 * time.Second

	defaultPrompt = "Convert this handwritten mathematical expression to LaTeX.\n" +
		"Return ONLY the LaTeX code with:\n" +
		"- No surrounding $ or \\[ delimiters\n" +
		"- No markdown code fences\n" +
		"- No explanations\n" +
		"If nothing recognizable is drawn, return 'NO_MATH_FOUND'"
)

func endpoint() string {
	if config != nil && config.Endpoint != "" {
		return config.Endpoint
	}
	return defaultEndpoint
}

func prompt() string {
	if config != nil && config.Prompt != "" {
		return config.Prompt
	}
	return defaultPrompt
}

// Recognize sends a PNG image of the cropped drawing to the vision model and
// returns the LaTeX text. One invocation is single-shot; retries stay inside
// this call.
func Recognize(ctx context.Context, imageData []byte) (string, error) {
	if config == nil {
		return "", fmt.Errorf("recognition client not initialized")
	}
	if config.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return "", fmt.Errorf("model is required")
	}

	request := generateRequest{
		Contents: []content{
			{
				Parts: []part{
					{Text: prompt()},
					{InlineData: &inlineData{
						MimeType: "image/png",
						Data:     base64.StdEncoding.EncodeToString(imageData),
					}},
				},
			},
		},
		GenerationConfig: &generationConfig{
			Temperature:     0.1,
			MaxOutputTokens: 2000,
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(initialDelay) * (1.5 * float64(attempt)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := makeAPIRequest(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		if response.Error != nil {
			lastErr = fmt.Errorf("API error %d: %s", response.Error.Code, response.Error.Message)
			// Client-side errors (bad key, bad request) will not heal on retry.
			if response.Error.Code >= 400 && response.Error.Code < 500 && response.Error.Code != 429 {
				return "", lastErr
			}
			continue
		}
		if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("no candidates in API response")
			continue
		}

		text := cleanLatex(response.Candidates[0].Content.Parts[0].Text)
		if text == "" || text == "NO_MATH_FOUND" {
			return "", fmt.Errorf("no math recognized in drawing")
		}
		return text, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %v", maxRetries, lastErr)
}

// Ping performs a cheap reachability and credentials check against the model
// endpoint. Used at startup and by the tray status query.
func Ping(ctx context.Context) error {
	if config == nil {
		return fmt.Errorf("recognition client not initialized")
	}
	url := fmt.Sprintf("%s/v1beta/models/%s", endpoint(), config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", config.APIKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	return nil
}

func makeAPIRequest(ctx context.Context, request generateRequest) (*generateResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", endpoint(), config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", config.APIKey)

	client := &http.Client{Timeout: 45 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %v", err)
	}
	defer resp.Body.Close()

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if response.Error == nil && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return &response, nil
}

// cleanLatex strips markdown fences and math delimiters models sometimes add
// despite the prompt.
func cleanLatex(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```latex")
		text = strings.TrimPrefix(text, "```tex")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if len(text) >= 2 && strings.HasPrefix(text, "$") && strings.HasSuffix(text, "$") {
		text = strings.TrimSpace(strings.Trim(text, "$"))
	}
	return text
}
