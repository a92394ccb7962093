package chat_tools

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/officebot/internal/attendance"
	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/intake"
	"github.com/teemow/officebot/internal/server"
)

type fakeLedger struct{}

func (fakeLedger) Login(_ context.Context, id int64, name, user string) (*attendance.Result, error) {
	return &attendance.Result{Record: &attendance.Record{EmployeeID: &id, DisplayName: &name, UserIdentity: user}}, nil
}

func (fakeLedger) Logout(context.Context, string) (*attendance.Result, error) {
	now := time.Now()
	return &attendance.Result{Record: &attendance.Record{LoginTime: now, LogoutTime: &now}, Synthetic: true}, nil
}

func setup(t *testing.T) (*server.ServerContext, *Outbox) {
	t.Helper()
	sc := server.NewServerContext(context.Background())
	t.Cleanup(func() { _ = sc.Shutdown() })

	outbox := NewOutbox()
	d, err := chat.NewDispatcher(chat.Config{
		Sender: outbox,
		Ledger: fakeLedger{},
		Intake: intake.NewManager(nil),
	})
	require.NoError(t, err)
	sc.SetMessageHandler(d.Handle)
	return sc, outbox
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterChatTools(t *testing.T) {
	sc, outbox := setup(t)
	s := mcpserver.NewMCPServer("test-server", "1.0.0", mcpserver.WithToolCapabilities(true))

	require.NoError(t, RegisterChatTools(s, sc, outbox))
	tools := s.ListTools()
	assert.Contains(t, tools, "chat_send_message")
	assert.Contains(t, tools, "chat_read_messages")

	assert.Error(t, RegisterChatTools(s, nil, outbox))
	assert.Error(t, RegisterChatTools(s, sc, nil))
}

func TestSendAndRead(t *testing.T) {
	sc, outbox := setup(t)
	ctx := context.Background()

	res, err := handleSendMessage(ctx, call("chat_send_message", map[string]any{
		"author": "jane", "channel": "general", "text": "!login 42 Jane Doe",
	}), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "delivered to channel general")

	res, err = handleReadMessages(ctx, call("chat_read_messages", map[string]any{"channel": "general"}), outbox)
	require.NoError(t, err)
	got := text(t, res)
	assert.Contains(t, got, "1. Logged in Jane Doe (Employee ID: 42)")

	res, err = handleReadMessages(ctx, call("chat_read_messages", map[string]any{"channel": "general"}), outbox)
	require.NoError(t, err)
	assert.Equal(t, "No replies in channel general", text(t, res), "replies are consumed")
}

func TestSendMessage_Validation(t *testing.T) {
	sc, _ := setup(t)
	ctx := context.Background()

	for _, args := range []map[string]any{
		{"text": "!help"},
		{"author": "jane"},
		{"author": "  ", "text": "!help"},
	} {
		res, err := handleSendMessage(ctx, call("chat_send_message", args), sc)
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}

	require.NoError(t, sc.Shutdown())
	res, err := handleSendMessage(ctx, call("chat_send_message", map[string]any{"author": "a", "text": "!help"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), server.ErrShutdown.Error())
}

func TestReadMessages_WaitsForIntakePrompt(t *testing.T) {
	sc, outbox := setup(t)
	ctx := context.Background()

	_, err := handleSendMessage(ctx, call("chat_send_message", map[string]any{"author": "jane", "text": "!setupmeeting"}), sc)
	require.NoError(t, err)

	// The prompt is sent from the flow goroutine.
	res, err := handleReadMessages(ctx, call("chat_read_messages", map[string]any{"wait_seconds": float64(2)}), outbox)
	require.NoError(t, err)
	assert.Contains(t, text(t, res), intake.PromptTopic)

	res, err = handleReadMessages(ctx, call("chat_read_messages", map[string]any{"wait_seconds": float64(-1)}), outbox)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestOutbox(t *testing.T) {
	o := NewOutbox()
	ctx := context.Background()

	require.NoError(t, o.Send(ctx, "a", "one"))
	require.NoError(t, o.Send(ctx, "b", "other"))
	require.NoError(t, o.Send(ctx, "a", "two"))

	got := o.Drain("a")
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)
	assert.Empty(t, o.Drain("a"))

	assert.Len(t, o.Wait(ctx, "b", 0), 1)
	assert.Empty(t, o.Wait(ctx, "b", 10*time.Millisecond))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = o.Send(ctx, "c", "late")
	}()
	late := o.Wait(ctx, "c", 2*time.Second)
	require.Len(t, late, 1)
	assert.Equal(t, "late", late[0].Text)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Nil(t, o.Wait(cancelled, "d", time.Second))
}

func TestChannelFromArgs(t *testing.T) {
	assert.Equal(t, DefaultChannel, channelFromArgs(map[string]any{}))
	assert.Equal(t, DefaultChannel, channelFromArgs(map[string]any{"channel": " "}))
	assert.Equal(t, DefaultChannel, channelFromArgs(map[string]any{"channel": 7}))
	assert.Equal(t, "general", channelFromArgs(map[string]any{"channel": " general "}))
}
