package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
	"github.com/teemow/officebot/internal/meeting"
)

// DefaultCalendarID is the calendar meetings are created on.
const DefaultCalendarID = "primary"

// TokenSource hands out a valid access token for every call. The Google
// authenticator satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Client is a meeting.Provider creating Google Calendar events with a Meet
// conference attached.
type Client struct {
	tokens     TokenSource
	calendarID string
	endpoint   string
	httpClient *http.Client
	newID      func() string
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithCalendarID sets the target calendar (default "primary").
func WithCalendarID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.calendarID = id
		}
	}
}

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient sets the base HTTP client the OAuth transport wraps.
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

// NewClient creates a Meet provider.
func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("calendar: token source cannot be nil")
	}
	c := &Client{
		tokens:     tokens,
		calendarID: DefaultCalendarID,
		// Force HTTP/1.1 by disabling HTTP/2
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithProvider(c.logger, instrumentation.ProviderGoogle)
	return c, nil
}

// CreateMeeting refreshes the Google token, inserts the event and returns the
// Meet link.
func (c *Client) CreateMeeting(ctx context.Context, req meeting.Request) (*meeting.Result, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderGoogle, instrumentation.OperationCreateMeeting)
	defer span.End()

	start := time.Now()
	res, err := c.insert(ctx, tok, req)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("google meet creation failed", logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordProviderOperation(ctx, instrumentation.ProviderGoogle, instrumentation.OperationCreateMeeting, status, time.Since(start))
	return res, err
}

func (c *Client) insert(ctx context.Context, tok *oauth2.Token, req meeting.Request) (*meeting.Result, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(base, oauth2.StaticTokenSource(tok))),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	created, err := svc.Events.Insert(c.calendarID, buildEvent(req, c.newID())).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &meeting.AdapterError{
				Provider:   instrumentation.ProviderGoogle,
				StatusCode: gerr.Code,
				Body:       gerr.Body,
			}
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	link := joinLink(created)
	if link == "" {
		return nil, errors.New("created event has no join link")
	}
	c.logger.Info("google meet created", slog.String("event_id", created.Id))
	return &meeting.Result{JoinURL: link}, nil
}
