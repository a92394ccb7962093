package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/officebot/internal/attendance"
	"github.com/teemow/officebot/internal/intake"
)

// timeLayout renders attendance timestamps in replies.
const timeLayout = "2006-01-02 15:04:05 MST"

var (
	errUsage         = errors.New("invalid command usage")
	errNotConfigured = errors.New("integration not configured")
)

func (d *Dispatcher) login(ctx context.Context, args string, msg Message) (string, error) {
	idText, name, _ := strings.Cut(args, " ")
	name = strings.TrimSpace(name)
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || name == "" {
		return fmt.Sprintf("Usage: %slogin <employee_id> <name>", d.prefix), errUsage
	}

	if _, err := d.ledger.Login(ctx, id, name, msg.AuthorID); err != nil {
		return "Error logging in: " + err.Error(), err
	}
	return fmt.Sprintf("Logged in %s (Employee ID: %d)", name, id), nil
}

func (d *Dispatcher) logout(ctx context.Context, msg Message) (string, error) {
	res, err := d.ledger.Logout(ctx, msg.AuthorID)
	if err != nil {
		return "Error logging out: " + err.Error(), err
	}

	rec := res.Record
	logoutAt := formatTime(rec.LoginTime)
	if rec.LogoutTime != nil {
		logoutAt = formatTime(*rec.LogoutTime)
	}
	if res.Synthetic {
		return "No active session found for your user ID. Logout recorded at " + logoutAt + ".", nil
	}

	return fmt.Sprintf("Employee ID: %s has logged out.\nLogin Time: %s\nLogout Time: %s",
		employeeID(rec), formatTime(rec.LoginTime), logoutAt), nil
}

func (d *Dispatcher) authenticate() (string, error) {
	if d.auth == nil {
		return "Google authentication is not configured.", errNotConfigured
	}
	return fmt.Sprintf("Please authenticate by clicking [here](%s)", d.auth.AuthCodeURL()), nil
}

func (d *Dispatcher) setupMeeting(ctx context.Context, msg Message) (string, error) {
	key := intake.Key{Author: msg.AuthorID, Channel: msg.ChannelID}
	if _, err := d.intake.Start(ctx, key, d.replier(msg.ChannelID)); err != nil {
		if errors.Is(err, intake.ErrFlowInProgress) {
			return "A meeting setup is already in progress for you in this channel. Please answer the current question first.", err
		}
		return "Error: " + err.Error(), err
	}
	// The flow sends its own prompts.
	return "", nil
}

func (d *Dispatcher) ask(ctx context.Context, question string) (string, error) {
	if d.assistant == nil {
		return "The assistant is not configured.", errNotConfigured
	}
	if question == "" {
		return fmt.Sprintf("Usage: %sask <question>", d.prefix), errUsage
	}

	answer, err := d.assistant.Ask(ctx, question)
	if err != nil {
		return "Error interacting with ChatGPT: " + err.Error(), err
	}
	return answer, nil
}

func (d *Dispatcher) help() string {
	return HelpText(d.prefix)
}

// HelpText lists the chat commands for prefix.
func HelpText(prefix string) string {
	lines := []string{
		"Available commands:",
		prefix + "login <employee_id> <name> - start your work session",
		prefix + "logout - end your work session",
		prefix + "authenticate - connect Google Calendar for Google Meet links",
		prefix + "setupmeeting - schedule a Zoom or Google Meet meeting",
		prefix + "ask <question> - ask the assistant",
		prefix + "help - show this message",
	}
	return strings.Join(lines, "\n")
}

func employeeID(rec *attendance.Record) string {
	if rec.EmployeeID == nil {
		return "unknown"
	}
	return strconv.FormatInt(*rec.EmployeeID, 10)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
