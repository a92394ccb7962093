// Package cmd implements the command-line interface for officebot.
//
// This package provides the following commands:
//   - serve: Run the chat bot on Discord, the console or MCP stdio
//   - migrate: Apply the attendance database migrations
//   - auth-url: Print a Google consent URL for the callback server
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for the MCP chat tools
package cmd
