// Package chat is the transport independent command layer of officebot.
//
// A transport (Discord, the console, MCP) turns platform events into Message
// values and passes them to Dispatcher.Handle. Replies go back through the
// transport's Sender. Commands start with a configurable prefix:
//
//	!login <employee_id> <name>
//	!logout
//	!authenticate
//	!setupmeeting
//	!ask <question>
//	!help
//
// While a setupmeeting flow waits for an answer, the next message from the
// same author in the same channel is the answer, even if it looks like a
// command.
package chat
