package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/frames"
	"github.com/classlens/classlens/internal/logger"
	"github.com/classlens/classlens/internal/prompts"
)

// TokenUsage is the accounting for one or more vision calls.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Total returns the combined token count.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		CostUSD:      u.CostUSD + other.CostUSD,
	}
}

// Client calls an OpenAI-compatible chat completions endpoint with frame
// attachments. Every call passes three gates in order: circuit breaker,
// daily budget, then the submission queue.
type Client struct {
	http        *resty.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	maxAttempts int
	backoffBase time.Duration

	inCostPer1K  float64
	outCostPer1K float64

	breaker *Breaker
	ledger  *Ledger
	queue   *Queue
}

// NewClient creates a vision client.
// Parameters:
//   - cfg: vision provider configuration.
//   - ledger: shared daily budget ledger.
// Returns:
//   - *Client: initialized client with its own breaker and queue.
func NewClient(cfg *config.VisionConfig, ledger *Ledger) *Client {
	httpClient := resty.New()
	httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	httpClient.SetHeader("Content-Type", "application/json")
	httpClient.SetTimeout(120 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Client{
		http:         httpClient,
		endpoint:     baseURL + "/chat/completions",
		model:        cfg.Model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		inCostPer1K:  cfg.InputCostPer1K,
		outCostPer1K: cfg.OutputCostPer1K,
		breaker:      NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		ledger:       ledger,
		queue:        NewQueue(cfg.MaxConcurrent, cfg.RequestsPerMin),
	}
}

// Model returns the model identifier in use.
func (c *Client) Model() string {
	return c.model
}

// Breaker exposes the circuit breaker for pre-flight checks.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Ledger exposes the budget ledger for pre-flight checks.
func (c *Client) Ledger() *Ledger {
	return c.ledger
}

// OpenAI-compatible chat completion payloads.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageContent struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeBatch scores one batch of rubric elements against the sampled
// frames. A malformed response is retried once with a fresh call before
// the batch fails.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - tc: lesson context.
//   - rubricName: display name of the rubric.
//   - elements: the batch to score.
//   - sampled: quality-filtered frames attached to the request.
// Returns:
//   - *prompts.AnalysisResponse: parsed, clamped element analyses.
//   - TokenUsage: combined usage across all calls made for this batch.
//   - error: ErrCircuitOpen, ErrBudgetExceeded, prompts.ErrMalformedResponse,
//     or a provider error.
func (c *Client) AnalyzeBatch(ctx context.Context, tc prompts.TeacherContext, rubricName string, elements []domain.RubricElement, sampled []frames.Frame) (*prompts.AnalysisResponse, TokenUsage, error) {
	timestamps := make([]float64, len(sampled))
	for i, f := range sampled {
		timestamps[i] = f.Timestamp
	}
	system, user := prompts.BuildAnalysisPrompt(tc, rubricName, elements, timestamps)

	content := make([]interface{}, 0, len(sampled)+1)
	content = append(content, textContent{Type: "text", Text: user})
	for _, f := range sampled {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(f.Data)
		content = append(content, imageContent{
			Type:     "image_url",
			ImageURL: imageURL{URL: dataURL, Detail: "auto"},
		})
	}

	messages := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: content},
	}

	var total TokenUsage
	var lastErr error
	// One reparse attempt: a second call often recovers from truncated or
	// fenced output without failing the whole video.
	for attempt := 0; attempt < 2; attempt++ {
		raw, usage, err := c.complete(ctx, messages)
		total = total.Add(usage)
		if err != nil {
			return nil, total, err
		}
		resp, err := prompts.ParseAnalysisResponse(raw)
		if err == nil {
			return resp, total, nil
		}
		lastErr = err
		logger.FromContext(ctx).WithError(err).Warn("Malformed analysis response, retrying once")
	}
	return nil, total, lastErr
}

// Synthesize produces the overall assessment from the per-element
// analyses. Text-only call; no frames attached.
func (c *Client) Synthesize(ctx context.Context, tc prompts.TeacherContext, rubricName string, elements []domain.RubricElement, analyses []prompts.ElementAnalysis) (*prompts.SynthesisResponse, TokenUsage, error) {
	system, user := prompts.BuildSynthesisPrompt(tc, rubricName, elements, analyses)
	messages := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	var total TokenUsage
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, usage, err := c.complete(ctx, messages)
		total = total.Add(usage)
		if err != nil {
			return nil, total, err
		}
		resp, err := prompts.ParseSynthesisResponse(raw)
		if err == nil {
			return resp, total, nil
		}
		lastErr = err
		logger.FromContext(ctx).WithError(err).Warn("Malformed synthesis response, retrying once")
	}
	return nil, total, lastErr
}

// complete runs one chat completion through the breaker, budget, and queue
// gates, retrying transient provider failures with exponential backoff.
func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, TokenUsage, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", TokenUsage{}, ctx.Err()
			}
		}

		if err := c.breaker.Allow(); err != nil {
			return "", TokenUsage{}, err
		}
		// Allow may have claimed the half-open probe slot; if a later gate
		// aborts this attempt the claim must be released or the breaker
		// wedges refusing every future call.
		if err := c.ledger.Check(ctx); err != nil {
			c.breaker.Abort()
			return "", TokenUsage{}, err
		}
		if err := c.queue.Acquire(ctx); err != nil {
			c.breaker.Abort()
			return "", TokenUsage{}, err
		}

		content, usage, retryable, err := c.doRequest(ctx, req)
		c.queue.Release()

		if err == nil {
			c.breaker.Success()
			if recordErr := c.ledger.Record(ctx, c.model, usage); recordErr != nil {
				logger.FromContext(ctx).WithError(recordErr).Warn("Failed to record token usage")
			}
			return content, usage, nil
		}

		// Shutdown and deadline cancellations say nothing about provider
		// health; they must not count toward the failure threshold.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.breaker.Abort()
			return "", TokenUsage{}, err
		}

		c.breaker.Failure()
		lastErr = err
		if !retryable {
			break
		}
		logger.FromContext(ctx).WithError(err).
			WithField("attempt", attempt+1).Warn("Vision call failed, will retry")
	}
	return "", TokenUsage{}, fmt.Errorf("vision call failed after retries: %w", lastErr)
}

// doRequest performs a single HTTP attempt. The bool result reports
// whether the failure is worth retrying: 429 and 5xx are, other 4xx are
// not.
func (c *Client) doRequest(ctx context.Context, req chatRequest) (string, TokenUsage, bool, error) {
	var resp chatResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", TokenUsage{}, false, err
		}
		return "", TokenUsage{}, true, fmt.Errorf("vision request failed: %w", err)
	}

	status := httpResp.StatusCode()
	if status == 429 || status >= 500 {
		return "", TokenUsage{}, true, fmt.Errorf("vision API returned HTTP %d: %s", status, truncateBody(httpResp.Body()))
	}
	if status < 200 || status >= 300 {
		msg := truncateBody(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", TokenUsage{}, false, fmt.Errorf("vision API returned HTTP %d: %s", status, msg)
	}
	if resp.Error != nil {
		return "", TokenUsage{}, false, fmt.Errorf("vision API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", TokenUsage{}, false, fmt.Errorf("vision API returned no choices (status %d)", status)
	}

	// Providers sometimes omit the usage block; treat missing counts as
	// zero rather than failing the call.
	usage := TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	usage.CostUSD = float64(usage.InputTokens)/1000*c.inCostPer1K +
		float64(usage.OutputTokens)/1000*c.outCostPer1K

	return resp.Choices[0].Message.Content, usage, false, nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max])
}
