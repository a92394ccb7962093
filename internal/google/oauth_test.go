package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/officebot/internal/meeting"
)

type fakeTokenEndpoint struct {
	*httptest.Server
	calls atomic.Int32

	// response is written for every request; status defaults to 200.
	status   int
	response string
	lastForm url.Values
}

func newFakeTokenEndpoint(t *testing.T) *fakeTokenEndpoint {
	t.Helper()
	f := &fakeTokenEndpoint{status: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		require.NoError(t, r.ParseForm())
		f.lastForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.response))
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestAuthenticator(t *testing.T, f *fakeTokenEndpoint, store TokenStore, opts ...Option) *Authenticator {
	t.Helper()
	opts = append([]Option{WithHTTPClient(f.Client())}, opts...)
	a, err := NewAuthenticator(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      "https://bot.example.test/",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.test/o/oauth2/auth",
			TokenURL:  f.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, store, opts...)
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_Validation(t *testing.T) {
	_, err := NewAuthenticator(Config{ClientID: "id"}, NewMemoryStore())
	assert.Error(t, err)

	_, err = NewAuthenticator(Config{ClientID: "id", ClientSecret: "s"}, nil)
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	a := newTestAuthenticator(t, f, NewMemoryStore())

	assert.Equal(t, "https://bot.example.test/callback", a.RedirectURL())

	u, err := url.Parse(a.AuthCodeURL())
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://bot.example.test/callback", q.Get("redirect_uri"))
	assert.Equal(t, CalendarScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.True(t, a.ValidateState(q.Get("state")))
}

func TestValidateState(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(t, f, NewMemoryStore(), WithClock(func() time.Time { return now }))

	state := a.newState()
	assert.True(t, a.ValidateState(state))

	tampered := strings.Replace(state, ".", "x.", 1)
	assert.False(t, a.ValidateState(tampered))
	assert.False(t, a.ValidateState(""))
	assert.False(t, a.ValidateState("state"))

	// A different client secret cannot validate the state.
	other, err := NewAuthenticator(Config{ClientID: "client-id", ClientSecret: "other"}, NewMemoryStore())
	require.NoError(t, err)
	assert.False(t, other.ValidateState(state))

	now = now.Add(DefaultStateTTL + time.Second)
	assert.False(t, a.ValidateState(state), "expired state must be rejected")
}

func TestHandleCallback(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	f.response = `{"access_token":"ya29.a","refresh_token":"1//r","token_type":"Bearer","expires_in":3599,"scope":"https://www.googleapis.com/auth/calendar"}`
	store := NewMemoryStore()
	a := newTestAuthenticator(t, f, store)
	ctx := context.Background()

	_, err := a.HandleCallback(ctx, a.newState(), "")
	assert.ErrorIs(t, err, ErrMissingCode)

	_, err = a.HandleCallback(ctx, "forged", "code")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, f.calls.Load())

	tok, err := a.HandleCallback(ctx, a.newState(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "ya29.a", tok.AccessToken)
	assert.Equal(t, CalendarScope, tok.Extra("scope"))
	assert.Equal(t, "auth-code", f.lastForm.Get("code"))
	assert.Equal(t, "authorization_code", f.lastForm.Get("grant_type"))
	assert.Equal(t, "https://bot.example.test/callback", f.lastForm.Get("redirect_uri"))

	stored, err := store.Load(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "1//r", stored.RefreshToken)
	assert.True(t, a.HasRefreshToken(ctx))
}

func TestExchange_KeepsPreviousRefreshToken(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	f.response = `{"access_token":"ya29.new","token_type":"Bearer","expires_in":3599}`
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, TokenKey, &oauth2.Token{AccessToken: "old", RefreshToken: "1//kept"}))
	a := newTestAuthenticator(t, f, store)

	tok, err := a.Exchange(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "1//kept", tok.RefreshToken)

	stored, err := store.Load(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", stored.AccessToken)
	assert.Equal(t, "1//kept", stored.RefreshToken)
}

func TestExchange_Rejected(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	f.status = http.StatusBadRequest
	f.response = `{"error":"invalid_request","error_description":"Missing code verifier."}`
	a := newTestAuthenticator(t, f, NewMemoryStore())

	_, err := a.Exchange(context.Background(), "code")
	var ae *meeting.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Contains(t, ae.Body, "invalid_request")
}

func TestToken_NoRefreshTokenMakesNoRequest(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	store := NewMemoryStore()
	a := newTestAuthenticator(t, f, store)
	ctx := context.Background()

	_, err := a.Token(ctx)
	assert.ErrorIs(t, err, meeting.ErrAuthenticationRequired)

	require.NoError(t, store.Save(ctx, TokenKey, &oauth2.Token{AccessToken: "ya29.only"}))
	_, err = a.Token(ctx)
	assert.ErrorIs(t, err, meeting.ErrAuthenticationRequired)

	assert.Zero(t, f.calls.Load())
	assert.False(t, a.HasRefreshToken(ctx))
}

func TestToken_RefreshesEveryCall(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	f.response = `{"access_token":"ya29.fresh","token_type":"Bearer","expires_in":3599}`
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, TokenKey, &oauth2.Token{
		AccessToken:  "ya29.still-valid",
		RefreshToken: "1//r",
		Expiry:       time.Now().Add(time.Hour),
	}))
	a := newTestAuthenticator(t, f, store)

	for range 2 {
		tok, err := a.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ya29.fresh", tok.AccessToken)
		assert.Equal(t, "1//r", tok.RefreshToken)
	}
	assert.EqualValues(t, 2, f.calls.Load())
	assert.Equal(t, "refresh_token", f.lastForm.Get("grant_type"))
	assert.Equal(t, "1//r", f.lastForm.Get("refresh_token"))

	stored, err := store.Load(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "ya29.fresh", stored.AccessToken)
	assert.Equal(t, "1//r", stored.RefreshToken)
}

func TestToken_RevokedRefreshToken(t *testing.T) {
	f := newFakeTokenEndpoint(t)
	f.status = http.StatusBadRequest
	f.response = `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, TokenKey, &oauth2.Token{RefreshToken: "1//revoked"}))
	a := newTestAuthenticator(t, f, store)

	_, err := a.Token(ctx)
	assert.ErrorIs(t, err, meeting.ErrAuthenticationRequired)
}
