// Package slackapi implements the Slack OAuth v2 code-grant install flow
// and the bot-token-authenticated calls (conversations.open,
// chat.postMessage) digest delivery depends on.
package slackapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/scalytics/threadwatch/internal/store"
)

// oauthHTTPClient is used for the code-grant token exchange. Slack's
// OAuth endpoint is not performance sensitive enough to warrant sharing
// a client with the rest of the package.
var oauthHTTPClient = &http.Client{Timeout: 10 * time.Second}

// Config mirrors config.SlackConfig's OAuth-relevant fields.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	OAuthScopes  string
}

var (
	// ErrMissingClientConfig mirrors the original's ValueError("missing_client_config").
	ErrMissingClientConfig = errors.New("missing_client_config")
	// ErrOAuthFailed mirrors the original's ValueError("oauth_failed").
	ErrOAuthFailed = errors.New("oauth_failed")
	// ErrInvalidOAuthPayload mirrors the original's ValueError("invalid_oauth_payload").
	ErrInvalidOAuthPayload = errors.New("invalid_oauth_payload")
	// ErrWorkspaceNotFound mirrors the original's ValueError("workspace_not_found").
	ErrWorkspaceNotFound = errors.New("workspace_not_found")
)

// Client wraps workspace token lookup and rate-limited outbound Slack
// API calls behind the store.
type Client struct {
	store   *store.Store
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Client. The limiter allows Slack's default Tier 3
// web-API rate (roughly one call per second, bursting to 3) so a burst
// of digest deliveries doesn't trip Slack's own rate limiting.
func New(s *store.Store, cfg Config) *Client {
	return &Client{
		store:   s,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// BuildInstallURL returns the Slack OAuth v2 authorize URL a user visits
// to install the app into their workspace.
func (c *Client) BuildInstallURL() string {
	scopes := c.cfg.OAuthScopes
	if scopes == "" {
		scopes = "commands,chat:write,channels:read"
	}
	values := url.Values{}
	values.Set("client_id", c.cfg.ClientID)
	values.Set("scope", scopes)
	values.Set("redirect_uri", c.cfg.RedirectURI)
	return "https://slack.com/oauth/v2/authorize?" + values.Encode()
}

// ExchangeCodeForToken completes the code grant, returning the raw
// OAuth v2 response so the caller can persist the workspace token.
func (c *Client) ExchangeCodeForToken(ctx context.Context, code string) (*slack.OAuthV2Response, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, ErrMissingClientConfig
	}
	resp, err := slack.GetOAuthV2ResponseContext(ctx, oauthHTTPClient, c.cfg.ClientID, c.cfg.ClientSecret, code, c.cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}
	return resp, nil
}

// StoreWorkspaceToken persists the installed workspace's bot token.
func (c *Client) StoreWorkspaceToken(resp *slack.OAuthV2Response) error {
	if resp == nil || resp.Team.ID == "" || resp.AccessToken == "" {
		return ErrInvalidOAuthPayload
	}
	var scopes []string
	if resp.Scope != "" {
		scopes = strings.Split(resp.Scope, ",")
	}
	return c.store.UpsertWorkspace(resp.Team.ID, resp.AccessToken, resp.BotUserID, scopes)
}

// clientFor returns a slack.Client authenticated as the installed bot
// for teamID.
func (c *Client) clientFor(teamID string) (*slack.Client, error) {
	ws, ok, err := c.store.FetchWorkspace(teamID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return slack.New(ws.AccessToken), nil
}

// OpenDM opens (or fetches) the bot's direct-message channel with userID,
// returning the channel id.
func (c *Client) OpenDM(ctx context.Context, teamID, userID string) (string, error) {
	cl, err := c.clientFor(teamID)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	channel, _, _, err := cl.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

// PostMessage sends text with blocks to channelID, returning the
// message's ts on success.
func (c *Client) PostMessage(ctx context.Context, teamID, channelID, text string, blocks ...slack.Block) (string, error) {
	cl, err := c.clientFor(teamID)
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	_, ts, err := cl.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return "", err
	}
	return ts, nil
}
