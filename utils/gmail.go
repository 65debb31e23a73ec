package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"domaintrust/config"
)

var (
	// ErrAuthExchangeFailed means the authorization code could not be
	// exchanged for an access token.
	ErrAuthExchangeFailed = errors.New("authorization code exchange failed")

	// ErrProviderUnavailable means the mailbox listing call failed
	// after a valid token was obtained.
	ErrProviderUnavailable = errors.New("mailbox provider unavailable")
)

const defaultGmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailClient estimates account age from the oldest message in an
// authorized Gmail mailbox. Tokens are exchanged per request and never
// held in shared state, so concurrent verifications cannot observe
// each other's credentials.
type GmailClient struct {
	OAuth   *oauth2.Config
	BaseURL string
	Logger  *log.Logger
}

func NewGmailClient(cfg config.OAuthConfig, logger *log.Logger) *GmailClient {
	return &GmailClient{
		OAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.readonly",
			},
			Endpoint: google.Endpoint,
		},
		BaseURL: defaultGmailBaseURL,
		Logger:  logger,
	}
}

// AuthURL returns the Google consent URL a client visits to obtain an
// authorization code.
func (g *GmailClient) AuthURL(state string) string {
	return g.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// EarliestMessageDate exchanges the authorization code and returns the
// receipt timestamp of the oldest message in the mailbox. A mailbox
// with no visible messages returns (nil, nil); callers must treat that
// as non-blocking.
func (g *GmailClient) EarliestMessageDate(ctx context.Context, authCode string) (*time.Time, error) {
	token, err := g.OAuth.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthExchangeFailed, err)
	}

	client := g.OAuth.Client(ctx, token)

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.getJSON(ctx, client, "/users/me/messages?maxResults=1&orderBy=oldest", &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(list.Messages) == 0 {
		g.Logger.Printf("Mailbox has no visible messages")
		return nil, nil
	}

	var msg struct {
		InternalDate string `json:"internalDate"`
	}
	if err := g.getJSON(ctx, client, "/users/me/messages/"+list.Messages[0].ID+"?format=minimal", &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ms, err := strconv.ParseInt(msg.InternalDate, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: unexpected internalDate %q", ErrProviderUnavailable, msg.InternalDate)
	}

	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

func (g *GmailClient) getJSON(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gmail api returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
