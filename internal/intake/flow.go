package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/meeting"
)

// Outcome is the terminal result of a flow. FailedAt is only meaningful when
// State is Failed.
type Outcome struct {
	State    State
	FailedAt State
	JoinURL  string
	Err      error
}

// Flow is one running meeting setup conversation.
type Flow struct {
	key     Key
	replier Replier
	timeout time.Duration

	state   atomic.Int32
	replies chan string
	done    chan struct{}

	// req and outcome are only touched by the flow goroutine until done is
	// closed.
	req     meeting.Request
	outcome Outcome
}

func newFlow(key Key, replier Replier, timeout time.Duration) *Flow {
	return &Flow{
		key:     key,
		replier: replier,
		timeout: timeout,
		replies: make(chan string),
		done:    make(chan struct{}),
	}
}

// Key returns the conversation key.
func (f *Flow) Key() Key { return f.key }

// State returns the current state.
func (f *Flow) State() State { return State(f.state.Load()) }

// Done is closed when the flow has finished.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Wait blocks until the flow finishes and returns its outcome.
func (f *Flow) Wait() Outcome {
	<-f.done
	return f.outcome
}

func (f *Flow) finish(out Outcome) {
	f.outcome = out
	f.state.Store(int32(out.State))
	close(f.done)
}

func (f *Flow) run(ctx context.Context, m *Manager) Outcome {
	topic, err := f.await(ctx, AwaitingTopic, PromptTopic)
	if err == nil {
		f.req.Topic, err = parseTopic(topic)
	}
	if err != nil {
		return f.fail(ctx, AwaitingTopic, err)
	}

	start, err := f.await(ctx, AwaitingStart, PromptStart)
	if err == nil {
		f.req.StartTime, err = parseStart(start)
	}
	if err != nil {
		return f.fail(ctx, AwaitingStart, err)
	}

	duration, err := f.await(ctx, AwaitingDuration, PromptDuration)
	if err == nil {
		f.req.DurationMinutes, err = parseDuration(duration)
	}
	if err != nil {
		return f.fail(ctx, AwaitingDuration, err)
	}

	platform, err := f.await(ctx, AwaitingPlatform, PromptPlatform)
	if err == nil {
		f.req.Platform, err = parsePlatform(platform)
	}
	if err != nil {
		return f.fail(ctx, AwaitingPlatform, err)
	}

	return f.dispatch(ctx, m)
}

// await sends prompt and waits for one reply.
func (f *Flow) await(ctx context.Context, state State, prompt string) (string, error) {
	f.state.Store(int32(state))
	if err := f.replier.Reply(ctx, prompt); err != nil {
		return "", fmt.Errorf("failed to send prompt: %w", err)
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case text := <-f.replies:
		return text, nil
	case <-timer.C:
		return "", &TimeoutError{State: state, After: f.timeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Flow) dispatch(ctx context.Context, m *Manager) Outcome {
	f.state.Store(int32(Dispatching))
	instrumentation.AddEvent(ctx, "dispatch",
		attribute.String("platform", string(f.req.Platform)),
		attribute.Int("duration_minutes", f.req.DurationMinutes))

	prov, ok := m.provider(f.req.Platform)
	if !ok {
		return f.fail(ctx, Dispatching, fmt.Errorf("%s is not configured", f.req.Platform.DisplayName()))
	}

	res, err := prov.CreateMeeting(ctx, f.req)
	if errors.Is(err, meeting.ErrAuthenticationRequired) {
		msg := fmt.Sprintf("Error: %s requires authentication. Run %s and try again.", f.req.Platform.DisplayName(), m.authCommand)
		return f.failWith(ctx, Dispatching, err, msg)
	}
	if err != nil {
		return f.fail(ctx, Dispatching, err)
	}

	var msg string
	switch f.req.Platform {
	case meeting.PlatformGoogleMeet:
		msg = "Google Meet link created! Join link: " + res.JoinURL
	default:
		msg = f.req.Platform.DisplayName() + " meeting created! Join link: " + res.JoinURL
	}
	if err := f.replier.Reply(ctx, msg); err != nil {
		return Outcome{State: Failed, FailedAt: Dispatching, JoinURL: res.JoinURL, Err: fmt.Errorf("failed to send join link: %w", err)}
	}
	return Outcome{State: Completed, JoinURL: res.JoinURL}
}

// fail ends the flow with err and tells the user why.
func (f *Flow) fail(ctx context.Context, at State, err error) Outcome {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Field == "platform" {
		return f.failWith(ctx, at, err, MessageInvalidPlatform)
	}
	return f.failWith(ctx, at, err, "Error: "+err.Error())
}

func (f *Flow) failWith(ctx context.Context, at State, err error, msg string) Outcome {
	// A cancelled flow has nobody left to tell.
	if ctx.Err() == nil {
		_ = f.replier.Reply(ctx, msg)
	}
	return Outcome{State: Failed, FailedAt: at, Err: err}
}

func parseTopic(s string) (string, error) {
	topic := strings.TrimSpace(s)
	if topic == "" {
		return "", &ValidationError{Field: "topic", Value: s, Reason: "must not be empty"}
	}
	return topic, nil
}

func parseStart(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "start time", Value: v, Reason: "expected format YYYY-MM-DDTHH:MM:SSZ"}
	}
	return t.UTC().Truncate(time.Second), nil
}

// MaxDurationMinutes caps a meeting at one week.
const MaxDurationMinutes = 7 * 24 * 60

func parseDuration(s string) (int, error) {
	v := strings.TrimSpace(s)
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &ValidationError{Field: "duration", Value: v, Reason: "must be a positive whole number of minutes"}
	}
	if n > MaxDurationMinutes {
		return 0, &ValidationError{Field: "duration", Value: v, Reason: fmt.Sprintf("must be at most %d minutes", MaxDurationMinutes)}
	}
	return n, nil
}

func parsePlatform(s string) (meeting.Platform, error) {
	p, ok := meeting.ParsePlatform(s)
	if !ok {
		return "", &ValidationError{Field: "platform", Value: strings.TrimSpace(s), Reason: "choose Zoom or Google Meet"}
	}
	return p, nil
}

func outcomeLabel(out Outcome) string {
	var te *TimeoutError
	switch {
	case out.State == Completed:
		return instrumentation.IntakeCompleted
	case errors.As(out.Err, &te):
		return instrumentation.IntakeTimeout
	case errors.Is(out.Err, context.Canceled), errors.Is(out.Err, context.DeadlineExceeded):
		return instrumentation.IntakeCancelled
	default:
		return instrumentation.IntakeFailed
	}
}

func stateLabel(out Outcome) string {
	if out.State == Failed {
		return out.FailedAt.String()
	}
	return out.State.String()
}
