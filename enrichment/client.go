package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig controls retry behavior for API calls
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ChatMessage a single message in a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client client for OpenAI-compatible chat completion APIs
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryConfig RetryConfig
	limiter     *rate.Limiter
}

// NewClient creates a new chat completion client
func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, "https://api.openai.com/v1")
}

// NewClientWithBaseURL creates a client against a custom endpoint
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: transport,
		},
		retryConfig: DefaultRetryConfig(),
		limiter:     rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// ChatCompletion sends a chat completion request and returns the first choice content.
// Retries with exponential backoff on rate limit and server errors; quota exhaustion
// is terminal and returned immediately.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)

	requestBody := map[string]interface{}{
		"model":           model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.1,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[OpenAI] Retry attempt %d/%d for ChatCompletion after %v", attempt, c.retryConfig.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("context cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.retryConfig.BackoffMultiplier)
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}

		if c.apiKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Printf("[OpenAI] Request failed (attempt %d/%d): %v", attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := c.parseRetryAfter(resp)
			if retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", string(body))
			log.Printf("[OpenAI] Rate limit exceeded (attempt %d/%d), retry after %v",
				attempt+1, c.retryConfig.MaxRetries+1, delay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var errorResp struct {
				Error *struct {
					Message string `json:"message"`
					Type    string `json:"type"`
					Code    string `json:"code,omitempty"`
				} `json:"error,omitempty"`
			}
			json.Unmarshal(body, &errorResp)

			errorMsg := string(body)
			if errorResp.Error != nil {
				errorMsg = errorResp.Error.Message
				if strings.Contains(strings.ToLower(errorMsg), "quota") ||
					strings.Contains(strings.ToLower(errorMsg), "exceeded") ||
					strings.Contains(strings.ToLower(errorResp.Error.Type), "quota") {
					lastErr = fmt.Errorf("quota exceeded: %s (type: %s)", errorMsg, errorResp.Error.Type)
					log.Printf("[OpenAI] Quota exceeded (attempt %d/%d): %s",
						attempt+1, c.retryConfig.MaxRetries+1, errorMsg)
					// quota exhaustion is not transient, no retry
					return "", lastErr
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorMsg)

			if resp.StatusCode >= 500 && attempt < c.retryConfig.MaxRetries {
				log.Printf("[OpenAI] Server error %d (attempt %d/%d), will retry: %s",
					resp.StatusCode, attempt+1, c.retryConfig.MaxRetries+1, errorMsg)
				continue
			}

			return "", lastErr
		}

		var response struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error,omitempty"`
		}

		if err := json.Unmarshal(body, &response); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			log.Printf("[OpenAI] Failed to decode response (attempt %d/%d): %v",
				attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		if response.Error != nil {
			errorMsg := response.Error.Message
			if strings.Contains(strings.ToLower(errorMsg), "quota") ||
				strings.Contains(strings.ToLower(errorMsg), "rate limit") {
				lastErr = fmt.Errorf("quota/rate limit error: %s (type: %s)", errorMsg, response.Error.Type)
				log.Printf("[OpenAI] Quota/rate limit error in response (attempt %d/%d): %s",
					attempt+1, c.retryConfig.MaxRetries+1, errorMsg)
				if attempt < c.retryConfig.MaxRetries {
					continue
				}
			}
			return "", fmt.Errorf("API error: %s (type: %s)", errorMsg, response.Error.Type)
		}

		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		return response.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
}

func (c *Client) parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
		return seconds
	}

	return 0
}
