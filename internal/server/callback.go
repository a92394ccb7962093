package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/officebot/internal/google"
	"github.com/teemow/officebot/internal/logging"
)

// CodeExchanger completes an authorization code grant.
type CodeExchanger interface {
	HandleCallback(ctx context.Context, state, code string) (*oauth2.Token, error)
}

// TokenInfo is the non-secret part of a token returned by the callback.
type TokenInfo struct {
	TokenType       string    `json:"token_type"`
	Expiry          time.Time `json:"expiry"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	Scope           string    `json:"scope,omitempty"`
}

// CallbackResponse is the body of a successful callback.
type CallbackResponse struct {
	Status    string    `json:"status"`
	TokenInfo TokenInfo `json:"token_info"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// CallbackHandler serves GET /callback?code=...&state=... : it exchanges the
// code and stores the token. Besides the code, the request must carry the
// signed, unexpired state issued by AuthCodeURL; a missing or forged state is
// rejected with 400 before any exchange. Access tokens never appear in the
// response.
func CallbackHandler(exchanger CodeExchanger, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Detail: "method not allowed"})
			return
		}

		q := r.URL.Query()
		if providerErr := q.Get("error"); providerErr != "" {
			logger.Warn("authorization denied by provider",
				logging.Operation("oauth.callback"),
				slog.String("error", providerErr))
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: providerErr})
			return
		}

		tok, err := exchanger.HandleCallback(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			detail := err.Error()
			if errors.Is(err, google.ErrMissingCode) {
				detail = "No code provided"
			}
			logger.Warn("oauth callback failed", logging.Operation("oauth.callback"), logging.Err(err))
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: detail})
			return
		}

		scope, _ := tok.Extra("scope").(string)
		writeJSON(w, http.StatusOK, CallbackResponse{
			Status: "success",
			TokenInfo: TokenInfo{
				TokenType:       tok.Type(),
				Expiry:          tok.Expiry,
				HasRefreshToken: tok.RefreshToken != "",
				Scope:           scope,
			},
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
