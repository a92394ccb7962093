package google

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
	"github.com/teemow/officebot/internal/meeting"
)

const (
	// TokenKey is the store key for the Google token.
	TokenKey = "google"

	// CallbackPath is appended to the public base URL to form the redirect URI.
	CallbackPath = "/callback"

	DefaultStateTTL = 10 * time.Minute
)

var (
	// ErrInvalidState is returned when the callback state was not issued by
	// this client or has expired.
	ErrInvalidState = errors.New("invalid or expired OAuth state")

	// ErrMissingCode is returned when the callback carries no code.
	ErrMissingCode = errors.New("no code provided")
)

// Config holds the Google OAuth client settings.
type Config struct {
	ClientID     string
	ClientSecret string

	// BaseURL is the public URL of the callback server, without a trailing
	// slash. The redirect URI is BaseURL + CallbackPath.
	BaseURL string

	// Scopes defaults to DefaultOAuthScopes.
	Scopes []string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint

	// StateTTL bounds how long a consent URL stays valid (default 10m).
	StateTTL time.Duration
}

// Configured reports whether client credentials are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Authenticator runs the authorization code flow and hands out freshly
// refreshed access tokens. Exchange and Token are serialized.
type Authenticator struct {
	conf       *oauth2.Config
	store      TokenStore
	stateKey   []byte
	stateTTL   time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	mu sync.Mutex
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the HTTP client used against the token endpoint.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = hc }
}

// WithClock sets the time source used for state expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an Authenticator persisting tokens in store.
func NewAuthenticator(cfg Config, store TokenStore, opts ...Option) (*Authenticator, error) {
	if !cfg.Configured() {
		return nil, errors.New("google: client id and client secret are required")
	}
	if store == nil {
		return nil, errors.New("google: token store is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	mac := sha256.Sum256([]byte("officebot-oauth-state:" + cfg.ClientSecret))

	a := &Authenticator{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  strings.TrimRight(cfg.BaseURL, "/") + CallbackPath,
			Scopes:       scopes,
		},
		store:    store,
		stateKey: mac[:],
		stateTTL: ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.WithProvider(a.logger, instrumentation.ProviderGoogle)
	return a, nil
}

// RedirectURL returns the configured redirect URI.
func (a *Authenticator) RedirectURL() string {
	return a.conf.RedirectURL
}

// AuthCodeURL returns a consent URL requesting offline access. The consent
// prompt is forced so that Google always returns a refresh token.
func (a *Authenticator) AuthCodeURL() string {
	return a.conf.AuthCodeURL(a.newState(),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// newState returns "<uuid>.<expiry>.<mac>". Any process sharing the client
// secret can verify it, so URLs printed by the CLI work against the server.
func (a *Authenticator) newState() string {
	payload := uuid.NewString() + "." + strconv.FormatInt(a.now().Add(a.stateTTL).Unix(), 10)
	return payload + "." + a.sign(payload)
}

func (a *Authenticator) sign(payload string) string {
	h := hmac.New(sha256.New, a.stateKey)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ValidateState reports whether state was issued by AuthCodeURL and has not
// expired.
func (a *Authenticator) ValidateState(state string) bool {
	i := strings.LastIndexByte(state, '.')
	if i < 0 {
		return false
	}
	payload, sig := state[:i], state[i+1:]
	if !hmac.Equal([]byte(sig), []byte(a.sign(payload))) {
		return false
	}

	_, expiry, ok := strings.Cut(payload, ".")
	if !ok {
		return false
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return false
	}
	return a.now().Before(time.Unix(unix, 0))
}

// HandleCallback validates the callback parameters and exchanges the code.
func (a *Authenticator) HandleCallback(ctx context.Context, state, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	if !a.ValidateState(state) {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, ErrInvalidState
	}
	return a.Exchange(ctx, code)
}

// Exchange trades an authorization code for a token and stores it. A response
// without a refresh token keeps the previously stored one.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderGoogle, instrumentation.OperationExchange)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	tok, err := a.conf.Exchange(a.clientContext(ctx), code)
	if err != nil {
		err = upstreamError("failed to exchange auth code", err)
		a.finish(ctx, span, instrumentation.OperationExchange, start, err)
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}

	if tok.RefreshToken == "" {
		if prev, loadErr := a.store.Load(ctx, TokenKey); loadErr == nil {
			tok.RefreshToken = prev.RefreshToken
		}
	}

	if err := a.store.Save(ctx, TokenKey, tok); err != nil {
		err = fmt.Errorf("failed to save token: %w", err)
		a.finish(ctx, span, instrumentation.OperationExchange, start, err)
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}

	a.finish(ctx, span, instrumentation.OperationExchange, start, nil)
	a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	a.logger.Info("google authorization completed",
		slog.Bool("has_refresh_token", tok.RefreshToken != ""),
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))
	return tok, nil
}

// Token refreshes the access token from the stored refresh token and stores
// the result. It returns meeting.ErrAuthenticationRequired without any
// network call when no refresh token is stored.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderGoogle, instrumentation.OperationRefresh)
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.store.Load(ctx, TokenKey)
	if errors.Is(err, ErrTokenNotFound) || (err == nil && stored.RefreshToken == "") {
		return nil, meeting.ErrAuthenticationRequired
	}
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	start := time.Now()
	// A token with only a refresh token is always considered expired.
	src := a.conf.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		err = upstreamError("failed to refresh token", err)
		a.finish(ctx, span, instrumentation.OperationRefresh, start, err)
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = stored.RefreshToken
	}

	if err := a.store.Save(ctx, TokenKey, tok); err != nil {
		err = fmt.Errorf("failed to save refreshed token: %w", err)
		a.finish(ctx, span, instrumentation.OperationRefresh, start, err)
		return nil, err
	}

	a.finish(ctx, span, instrumentation.OperationRefresh, start, nil)
	a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	return tok, nil
}

// HasRefreshToken reports whether a refresh token is stored.
func (a *Authenticator) HasRefreshToken(ctx context.Context) bool {
	tok, err := a.store.Load(ctx, TokenKey)
	return err == nil && tok.RefreshToken != ""
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authenticator) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		a.logger.Warn("google oauth call failed", logging.Operation(op), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	a.metrics.RecordProviderOperation(ctx, instrumentation.ProviderGoogle, op, status, time.Since(start))
}

// upstreamError maps token endpoint failures. A rejected refresh token
// (invalid_grant) means the user has to consent again.
func upstreamError(msg string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if re.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%s: %w", msg, meeting.ErrAuthenticationRequired)
	}
	return &meeting.AdapterError{
		Provider:   instrumentation.ProviderGoogle,
		StatusCode: re.Response.StatusCode,
		Body:       string(re.Body),
	}
}
