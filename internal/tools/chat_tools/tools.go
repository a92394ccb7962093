package chat_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/server"
)

// maxWait caps the wait_seconds argument of chat_read_messages.
const maxWait = 120 * time.Second

var messageSeq atomic.Int64

// RegisterChatTools registers the chat tools. Messages are handled through
// sc so that conversations outlive the tool call, and replies are read from
// outbox, which must be the dispatcher's sender.
func RegisterChatTools(s *mcpserver.MCPServer, sc *server.ServerContext, outbox *Outbox) error {
	if sc == nil || outbox == nil {
		return fmt.Errorf("server context and outbox are required")
	}

	sendMessageTool := mcp.NewTool("chat_send_message",
		mcp.WithDescription("Post a chat message to the bot as the given author. Commands start with the command prefix, e.g. '!login 42 Jane Doe' or '!setupmeeting'. Answers to a running meeting setup are plain messages."),
		mcp.WithString("author",
			mcp.Required(),
			mcp.Description("Identity of the chat user sending the message"),
		),
		mcp.WithString("channel",
			mcp.Description("Channel the message is posted in (default: 'mcp')"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Message text"),
		),
	)
	s.AddTool(sendMessageTool, instrumented("chat_send_message", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSendMessage(ctx, request, sc)
	}))

	readMessagesTool := mcp.NewTool("chat_read_messages",
		mcp.WithDescription("Read and consume the bot replies posted in a channel"),
		mcp.WithString("channel",
			mcp.Description("Channel to read (default: 'mcp')"),
		),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Seconds to wait for a first reply when none is queued (default: 0, max: 120)"),
		),
	)
	s.AddTool(readMessagesTool, instrumented("chat_read_messages", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleReadMessages(ctx, request, outbox)
	}))

	return nil
}

// DefaultChannel is used when a tool call names no channel.
const DefaultChannel = "mcp"

func channelFromArgs(args map[string]any) string {
	if ch, ok := args["channel"].(string); ok && strings.TrimSpace(ch) != "" {
		return strings.TrimSpace(ch)
	}
	return DefaultChannel
}

func handleSendMessage(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	author, _ := args["author"].(string)
	if strings.TrimSpace(author) == "" {
		return mcp.NewToolResultError("author is required"), nil
	}
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	channel := channelFromArgs(args)

	msg := chat.Message{
		ID:         strconv.FormatInt(messageSeq.Add(1), 10),
		AuthorID:   author,
		AuthorName: author,
		ChannelID:  channel,
		Content:    text,
		Timestamp:  time.Now().UTC(),
	}
	if err := sc.HandleMessage(msg); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to deliver message: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message %s delivered to channel %s. Use chat_read_messages to read the replies.", msg.ID, channel)), nil
}

func handleReadMessages(ctx context.Context, request mcp.CallToolRequest, outbox *Outbox) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	channel := channelFromArgs(args)

	var wait time.Duration
	if secs, ok := args["wait_seconds"].(float64); ok {
		if secs < 0 {
			return mcp.NewToolResultError("wait_seconds must not be negative"), nil
		}
		wait = min(time.Duration(secs*float64(time.Second)), maxWait)
	}

	replies := outbox.Wait(ctx, channel, wait)
	if len(replies) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No replies in channel %s", channel)), nil
	}

	jsonResponse, err := json.MarshalIndent(replies, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format replies: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d reply(ies) in channel %s:\n", len(replies), channel)
	for i, r := range replies {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, r.Text)
	}
	fmt.Fprintf(&b, "\nFull response:\n%s", jsonResponse)
	return mcp.NewToolResultText(b.String()), nil
}
