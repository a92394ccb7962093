// Package zoom creates scheduled Zoom meetings through the Zoom REST API using
// server-to-server (account credentials) OAuth.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
	"github.com/teemow/officebot/internal/meeting"
)

const (
	DefaultTokenURL = "https://zoom.us/oauth/token"
	DefaultAPIURL   = "https://api.zoom.us"
	DefaultAgenda   = "Discuss the project"

	// startTimeLayout is the UTC layout the meetings endpoint expects.
	startTimeLayout = "2006-01-02T15:04:05Z"

	// scheduledMeeting is the Zoom meeting type for a one-off scheduled meeting.
	scheduledMeeting = 2

	maxErrorBody = 4 << 10
)

// Config holds the Zoom app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	AccountID    string

	// TokenURL and APIURL default to the public Zoom endpoints.
	TokenURL string
	APIURL   string

	// Agenda is sent with every meeting.
	Agenda string
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.AccountID != ""
}

// Client is a meeting.Provider backed by Zoom.
type Client struct {
	apiURL     string
	agenda     string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for both token and API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Zoom client. The access token is fetched lazily and
// reused until it expires.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("zoom: client id, client secret and account id are required")
	}

	c := &Client{
		apiURL:     strings.TrimRight(valueOr(cfg.APIURL, DefaultAPIURL), "/"),
		agenda:     valueOr(cfg.Agenda, DefaultAgenda),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithProvider(c.logger, instrumentation.ProviderZoom)

	conf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     valueOr(cfg.TokenURL, DefaultTokenURL),
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {cfg.AccountID},
		},
	}
	// The token source keeps this context for every refresh it performs.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	c.tokens = conf.TokenSource(tokenCtx)

	return c, nil
}

type meetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	Audio            string `json:"audio"`
	AutoRecording    string `json:"auto_recording"`
}

type createMeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone"`
	Agenda    string          `json:"agenda"`
	Settings  meetingSettings `json:"settings"`
}

type createMeetingResponse struct {
	ID      int64  `json:"id"`
	JoinURL string `json:"join_url"`
}

// CreateMeeting schedules a meeting and returns its join URL.
func (c *Client) CreateMeeting(ctx context.Context, req meeting.Request) (*meeting.Result, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderZoom, instrumentation.OperationCreateMeeting)
	defer span.End()

	start := time.Now()
	res, err := c.createMeeting(ctx, req)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("zoom meeting creation failed", logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordProviderOperation(ctx, instrumentation.ProviderZoom, instrumentation.OperationCreateMeeting, status, time.Since(start))
	return res, err
}

func (c *Client) createMeeting(ctx context.Context, req meeting.Request) (*meeting.Result, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, tokenError(err)
	}

	payload, err := json.Marshal(createMeetingRequest{
		Topic:     req.Topic,
		Type:      scheduledMeeting,
		StartTime: req.StartTime.UTC().Format(startTimeLayout),
		Duration:  req.DurationMinutes,
		Timezone:  "UTC",
		Agenda:    c.agenda,
		Settings: meetingSettings{
			HostVideo:        true,
			ParticipantVideo: true,
			Audio:            "voip",
			AutoRecording:    "cloud",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode meeting request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v2/users/me/meetings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build meeting request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create zoom meeting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &meeting.AdapterError{
			Provider:   instrumentation.ProviderZoom,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var out createMeetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode zoom meeting response: %w", err)
	}
	if out.JoinURL == "" {
		return nil, errors.New("zoom meeting response has no join_url")
	}

	c.logger.Info("zoom meeting created", slog.Int64("meeting_id", out.ID))
	return &meeting.Result{JoinURL: out.JoinURL}, nil
}

// tokenError turns a token endpoint rejection into an AdapterError.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &meeting.AdapterError{
			Provider:   instrumentation.ProviderZoom,
			StatusCode: re.Response.StatusCode,
			Body:       string(re.Body),
		}
	}
	return fmt.Errorf("failed to get zoom access token: %w", err)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
