package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

// Analyst exposes remote refund analyses for dispute tickets.
type Analyst interface {
	Enabled() bool
	Analyze(ctx context.Context, input AnalysisInput) (Result, error)
}

// Config configures the chat completions endpoint used for refund analysis.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AnalysisInput describes the signals sent to the remote analyst.
type AnalysisInput struct {
	Ticket  store.Ticket
	Profile scoring.CustomerProfile
}

// Client implements the Analyst interface against the OpenAI chat completions API.
// Each call makes exactly one request bounded by the configured timeout.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("remote analyst disabled")

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTemperature = 0.2
	defaultMaxTokens   = 300
	defaultTimeout     = 10 * time.Second
)

// NewClient builds a Client. It returns ErrDisabled when no API key is configured.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrDisabled
	}
	c := &Client{
		apiKey:      key,
		model:       firstNonEmpty(cfg.Model, defaultModel),
		baseURL:     strings.TrimRight(firstNonEmpty(cfg.BaseURL, defaultBaseURL), "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
	if c.temperature <= 0 {
		c.temperature = defaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	return c, nil
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

// Enabled reports whether the client has credentials to call out with.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Analyze requests a refund analysis for one ticket. Every failure is a *Failure.
func (c *Client) Analyze(ctx context.Context, input AnalysisInput) (Result, error) {
	if c == nil || !c.Enabled() {
		return Result{}, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.newChatRequest(input))
	if err != nil {
		return Result{}, fail(FailureMalformed, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fail(FailureTransport, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{}, fail(FailureTimeout, err)
		}
		return Result{}, fail(FailureTransport, fmt.Errorf("openai request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fail(FailureStatus, fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		if isTimeout(ctx, err) {
			return Result{}, fail(FailureTimeout, err)
		}
		return Result{}, fail(FailureMalformed, fmt.Errorf("decode response: %w", err))
	}

	if len(reply.Choices) == 0 {
		return Result{}, fail(FailureEmpty, errors.New("openai returned no choices"))
	}

	content := extractJSONObject(reply.Choices[0].Message.Content)
	if content == "" {
		return Result{}, fail(FailureEmpty, errors.New("openai empty content"))
	}

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return Result{}, fail(FailureMalformed, fmt.Errorf("parse ai response: %w", err))
	}

	sanitizeResult(&result)
	if result.RefundScore == nil {
		return Result{}, fail(FailureMalformed, errors.New("refund_score missing"))
	}
	if result.RiskLevel == "" {
		return Result{}, fail(FailureMalformed, errors.New("risk_level missing"))
	}
	if result.Reasoning == "" {
		return Result{}, fail(FailureMalformed, errors.New("reasoning missing"))
	}

	return result, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// extractJSONObject pulls the outermost JSON object out of a model reply,
// tolerating markdown fences and surrounding prose.
func extractJSONObject(reply string) string {
	body := strings.TrimSpace(reply)
	if fenced, ok := strings.CutPrefix(body, "```"); ok {
		_, after, found := strings.Cut(fenced, "\n")
		if !found {
			after = fenced
		}
		body, _ = strings.CutSuffix(strings.TrimSpace(after), "```")
		body = strings.TrimSpace(body)
	}
	first, last := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
	if first < 0 || last < first {
		return body
	}
	return strings.TrimSpace(body[first : last+1])
}

const systemPrompt = "You are a refund analyst. Respond only in JSON format with keys refund_score (integer 0-100), decision, reasoning, resolution_type, proposed_amount, and risk_level (low, medium, or high)."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatReply struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) newChatRequest(input AnalysisInput) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: refundPrompt(input)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func refundPrompt(input AnalysisInput) string {
	t, p := input.Ticket, input.Profile
	var b strings.Builder
	b.WriteString("REFUND DECISION ANALYSIS\n\n")
	fmt.Fprintf(&b, "Customer: %s\nAmount: $%.2f\nCategory: %s\n", t.CustomerEmail, t.DisputeValue, t.Category)
	fmt.Fprintf(&b, "Issue: %s\nDescription: %s\n\n", strings.TrimSpace(t.Title), strings.TrimSpace(t.Description))
	fmt.Fprintf(&b, "Customer Profile: %s customer with %d orders, refund ratio %.2f, loyalty %d, %d risk signals\n\n",
		p.Segment, p.OrderHistory, p.RefundRatio, p.LoyaltyScore, p.RiskSignals)
	b.WriteString("Provide: refund_score (0-100), decision, reasoning, resolution_type, proposed_amount, risk_level\n\n")
	b.WriteString("Respond in JSON format only.\n")
	return b.String()
}

func sanitizeResult(result *Result) {
	if result == nil {
		return
	}
	result.Reasoning = strings.TrimSpace(result.Reasoning)
	result.Decision = strings.TrimSpace(result.Decision)
	result.ResolutionType = strings.TrimSpace(result.ResolutionType)
	if result.RefundScore != nil {
		val := clamp(*result.RefundScore, 0, 100)
		result.RefundScore = &val
	}
	result.RiskLevel = strings.ToLower(strings.TrimSpace(result.RiskLevel))
	switch result.RiskLevel {
	case scoring.RiskLow, scoring.RiskMedium, scoring.RiskHigh:
	default:
		result.RiskLevel = ""
	}
	if result.ProposedAmount != nil {
		val := *result.ProposedAmount
		if math.IsNaN(val) || val < 0 {
			val = 0
		}
		result.ProposedAmount = &val
	}
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
