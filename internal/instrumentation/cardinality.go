package instrumentation

import "strings"

// Cardinality helpers. Chat users can type anything after the command prefix,
// so label values derived from user input must be bounded before they reach
// a metric.

// CommandUnknown is the label used for commands outside the known set.
const CommandUnknown = "unknown"

// NormalizeCommand lowercases name and returns it if it is one of known,
// otherwise CommandUnknown.
//
// Example:
//
//	NormalizeCommand("Login", []string{"login"})   // "login"
//	NormalizeCommand("drop table", nil)           // "unknown"
func NormalizeCommand(name string, known []string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range known {
		if name == k {
			return name
		}
	}
	return CommandUnknown
}

// Common provider operations.
const (
	OperationCreateMeeting  = "create_meeting"
	OperationToken          = "token"
	OperationExchange       = "exchange"
	OperationRefresh        = "refresh"
	OperationChatCompletion = "chat_completion"
)
