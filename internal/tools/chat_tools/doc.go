// Package chat_tools exposes the chat bot over the Model Context Protocol.
//
// An MCP client plays the part of a chat user: it posts messages that the
// dispatcher handles exactly like Discord messages, and reads the bot's
// replies back from an in-memory outbox. The tools are:
//
//   - chat_send_message: post a message as an author in a channel
//   - chat_read_messages: read (and consume) the bot replies in a channel,
//     optionally waiting for the first one
//
// Example MCP tool call:
//
//	{
//	  "tool": "chat_send_message",
//	  "arguments": {
//	    "author": "jane",
//	    "channel": "general",
//	    "text": "!login 42 Jane Doe"
//	  }
//	}
package chat_tools
