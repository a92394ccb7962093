// Package logging provides structured logging utilities for officebot.
//
// Attribute keys are shared across the codebase so that log lines from the
// chat dispatcher, the intake flows and the provider adapters can be joined
// on the same fields.
//
// # Usage Patterns
//
// Build the process logger once and scope it per component:
//
//	logger := logging.New(os.Stderr, "info", "json")
//	logger = logging.WithProvider(logger, "zoom")
//	logger.Info("meeting created", logging.Operation("create_meeting"))
//
// Chat user identities are hashed before they reach a log line:
//
//	logger.Info("login recorded", logging.UserHash(msg.AuthorID))
//
// # Security Considerations
//
//   - Chat user ids are hashed so entries stay correlatable without exposing them
//   - Tokens are never logged directly, use SanitizeToken
package logging
