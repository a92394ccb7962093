// Package meeting defines the contract shared by the video meeting providers.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAuthenticationRequired is returned by a provider that has no usable
// credentials yet. The user has to complete the OAuth consent flow first.
var ErrAuthenticationRequired = errors.New("authentication required")

// Platform identifies a meeting provider.
type Platform string

const (
	PlatformZoom       Platform = "zoom"
	PlatformGoogleMeet Platform = "google_meet"
)

// ParsePlatform maps a user reply to a Platform. Matching ignores case and
// surrounding whitespace.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zoom":
		return PlatformZoom, true
	case "google meet":
		return PlatformGoogleMeet, true
	default:
		return "", false
	}
}

// DisplayName returns the user facing provider name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformZoom:
		return "Zoom"
	case PlatformGoogleMeet:
		return "Google Meet"
	default:
		return string(p)
	}
}

// Request describes a meeting to be created.
type Request struct {
	Topic           string
	StartTime       time.Time
	DurationMinutes int
	Platform        Platform
}

// End returns the scheduled end of the meeting.
func (r Request) End() time.Time {
	return r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Result is a created meeting.
type Result struct {
	JoinURL string
}

// Provider creates meetings on one platform.
type Provider interface {
	CreateMeeting(ctx context.Context, req Request) (*Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Result, error)

// CreateMeeting calls f.
func (f ProviderFunc) CreateMeeting(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// AdapterError is a non-success response from a provider API.
type AdapterError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *AdapterError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s API returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.StatusCode, body)
}
