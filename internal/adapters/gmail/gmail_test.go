package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newGmailServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
			return
		}
		fmt.Fprint(w, `{"emailAddress":"Alice@Example.com","messagesTotal":3}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		fmt.Fprint(w, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		fmt.Fprintf(w, `{
			"id": "m1",
			"threadId": "t1",
			"snippet": "Submit by Friday &amp; don&#39;t be late",
			"internalDate": "1771236000000",
			"payload": {
				"mimeType": "multipart/alternative",
				"headers": [
					{"name": "Subject", "value": "Lab report"},
					{"name": "From", "value": "Prof <prof@uni.edu>"}
				],
				"parts": [
					{"mimeType": "text/plain", "body": {"data": %q}},
					{"mimeType": "text/html", "body": {"data": %q}}
				]
			}
		}`, encode("Submit on or before 16 Feb 2026."), encode("<p>ignored</p>"))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"html","payload":{"mimeType":"text/html","body":{"data":%q}}}`,
			encode("<html><body><p>Quiz <b>tomorrow</b></p></body></html>"))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"Not Found"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSourceOpenResolvesOwner(t *testing.T) {
	srv := newGmailServer(t)
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))

	session, err := source.Open(context.Background(), "good-token")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "alice@example.com", session.Owner())
}

func TestSourceOpenRejectsBadToken(t *testing.T) {
	srv := newGmailServer(t)
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))

	_, err := source.Open(context.Background(), "expired")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = source.Open(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestSourceOpenReportsUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))

	_, err := source.Open(context.Background(), "good-token")
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
}

func TestSessionListsAndFetches(t *testing.T) {
	srv := newGmailServer(t)
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))
	session, err := source.Open(context.Background(), "good-token")
	require.NoError(t, err)

	ids, err := session.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)

	email, err := session.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", email.ID)
	assert.Equal(t, "t1", email.ThreadID)
	assert.Equal(t, "Lab report", email.Subject)
	assert.Equal(t, "Prof <prof@uni.edu>", email.Sender)
	assert.Equal(t, "Submit by Friday & don't be late", email.Snippet)
	assert.Equal(t, "Submit on or before 16 Feb 2026.", email.Body)
	assert.True(t, email.ReceivedAt.Equal(time.UnixMilli(1771236000000)))
}

func TestSessionFetchFallsBackToHTML(t *testing.T) {
	srv := newGmailServer(t)
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))
	session, err := source.Open(context.Background(), "good-token")
	require.NoError(t, err)

	email, err := session.Fetch(context.Background(), "html")
	require.NoError(t, err)
	assert.Equal(t, "Quiz tomorrow", email.Body)
	assert.Equal(t, "Quiz tomorrow", email.Snippet)
	assert.True(t, email.ReceivedAt.IsZero())
}

func TestSessionFetchMissingMessage(t *testing.T) {
	srv := newGmailServer(t)
	source := NewSource(zap.NewNop(), option.WithEndpoint(srv.URL+"/"))
	session, err := source.Open(context.Background(), "good-token")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err = session.Fetch(context.Background(), "gone")
		assert.ErrorIs(t, err, core.ErrMalformedMessage)
	}
	assert.Equal(t, "closed", source.State())
}

func TestDecodeDataAcceptsUnpadded(t *testing.T) {
	data, ok := decodeData(base64.RawURLEncoding.EncodeToString([]byte("ab")))
	require.True(t, ok)
	assert.Equal(t, "ab", data)

	_, ok = decodeData("***")
	assert.False(t, ok)
}

func newTokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testExchanger(tokenURL string) *Exchanger {
	e := NewExchanger("client-id", "client-secret", zap.NewNop())
	e.config.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	return e
}

func TestExchangePassesTokenThrough(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK, `{
		"access_token": "ya29.token",
		"token_type": "Bearer",
		"refresh_token": "1//refresh",
		"expires_in": 3599,
		"id_token": "eyJ.id",
		"scope": "https://www.googleapis.com/auth/gmail.readonly"
	}`)

	resp, err := testExchanger(srv.URL).Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", resp["access_token"])
	assert.Equal(t, "Bearer", resp["token_type"])
	assert.Equal(t, "1//refresh", resp["refresh_token"])
	assert.Equal(t, "eyJ.id", resp["id_token"])
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.readonly", resp["scope"])
	assert.Contains(t, resp, "expiry")
	assert.Contains(t, resp, "expires_in")
}

func TestExchangeRejectedCode(t *testing.T) {
	srv := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Bad Request"}`)

	_, err := testExchanger(srv.URL).Exchange(context.Background(), "the-code")
	assert.ErrorIs(t, err, core.ErrExchangeFailed)
}

func TestExchangeRequiresCredentials(t *testing.T) {
	_, err := NewExchanger("", "", zap.NewNop()).Exchange(context.Background(), "the-code")
	assert.ErrorIs(t, err, core.ErrNotConfigured)

	_, err = testExchanger("http://127.0.0.1:1").Exchange(context.Background(), " ")
	assert.ErrorIs(t, err, core.ErrExchangeFailed)
}
