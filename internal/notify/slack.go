package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// ErrNotConfigured is returned by a channel that lacks credentials or a destination.
var ErrNotConfigured = errors.New("notification channel not configured")

// SlackConfig holds the bot credentials used for chat.postMessage.
// BaseURL overrides the Web API root, mainly for tests.
type SlackConfig struct {
	Token     string
	ChannelID string
	BaseURL   string
	Timeout   time.Duration
}

// SlackClient posts messages to one Slack channel.
type SlackClient struct {
	api     *slack.Client
	channel string
}

// NewSlackClient constructs a SlackClient. Missing credentials produce a client
// whose Post always returns ErrNotConfigured.
func NewSlackClient(cfg SlackConfig) *SlackClient {
	token := strings.TrimSpace(cfg.Token)
	channel := strings.TrimSpace(cfg.ChannelID)
	if token == "" || channel == "" {
		return &SlackClient{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout})}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, slack.OptionAPIURL(base+"/"))
	}
	return &SlackClient{api: slack.New(token, opts...), channel: channel}
}

// Configured reports whether both a token and a channel are set.
func (s *SlackClient) Configured() bool {
	return s != nil && s.api != nil && s.channel != ""
}

// Post sends text as a single mrkdwn section, with text as the notification fallback.
func (s *SlackClient) Post(ctx context.Context, text string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
	if _, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(section),
	); err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
