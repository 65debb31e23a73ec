package utils

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves both the token endpoint and the Gmail API surface
// the client touches.
type fakeGoogle struct {
	rejectExchange bool
	failListing    bool
	messages       []string // message ids, oldest first
	internalDate   int64    // unix millis of the oldest message
}

func (f *fakeGoogle) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectExchange {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})

	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if f.failListing {
			http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if len(f.messages) == 0 {
			fmt.Fprint(w, `{"resultSizeEstimate":0}`)
			return
		}
		fmt.Fprintf(w, `{"messages":[{"id":%q}]}`, f.messages[0])
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"internalDate":%q}`, f.messages[0], strconv.FormatInt(f.internalDate, 10))
	})

	return mux
}

func newTestGmailClient(t *testing.T, fake *fakeGoogle) *GmailClient {
	t.Helper()

	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	return &GmailClient{
		OAuth: &oauth2.Config{
			ClientID:     "test-client",
			ClientSecret: "test-secret",
			RedirectURL:  "http://localhost/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  ts.URL + "/auth",
				TokenURL: ts.URL + "/token",
			},
		},
		BaseURL: ts.URL + "/gmail/v1",
		Logger:  log.New(io.Discard, "", 0),
	}
}

func TestEarliestMessageDate(t *testing.T) {
	oldest := time.Now().Add(-2 * time.Hour).Truncate(time.Millisecond)
	client := newTestGmailClient(t, &fakeGoogle{
		messages:     []string{"msg-001"},
		internalDate: oldest.UnixMilli(),
	})

	got, err := client.EarliestMessageDate(context.Background(), "auth-code")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(oldest), "want %s, got %s", oldest, got)
}

func TestEarliestMessageDateEmptyMailbox(t *testing.T) {
	client := newTestGmailClient(t, &fakeGoogle{})

	got, err := client.EarliestMessageDate(context.Background(), "auth-code")

	require.NoError(t, err, "an empty mailbox is not a failure")
	assert.Nil(t, got)
}

func TestEarliestMessageDateExchangeFails(t *testing.T) {
	client := newTestGmailClient(t, &fakeGoogle{rejectExchange: true})

	got, err := client.EarliestMessageDate(context.Background(), "bad-code")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExchangeFailed)
}

func TestEarliestMessageDateProviderDown(t *testing.T) {
	client := newTestGmailClient(t, &fakeGoogle{failListing: true})

	got, err := client.EarliestMessageDate(context.Background(), "auth-code")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestAuthURLCarriesState(t *testing.T) {
	client := newTestGmailClient(t, &fakeGoogle{})

	url := client.AuthURL("csrf-state")

	assert.Contains(t, url, "state=csrf-state")
	assert.Contains(t, url, "access_type=offline")
}
