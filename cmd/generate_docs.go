package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/server"
	"github.com/teemow/officebot/internal/tools/chat_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
		prefix     string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate chat command and MCP tool documentation",
		Long: `Generate markdown documentation for the chat commands and the MCP tools
of the mcp transport. The tools are introspected from a registered server so
the documentation always matches the implementation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile, prefix)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&prefix, "command-prefix", chat.DefaultPrefix, "Command prefix used in the examples")

	return cmd
}

func runGenerateDocs(outputFile, prefix string) error {
	// No handler or database is needed to list the tools.
	serverContext := server.NewServerContext(context.Background())
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("officebot", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := chat_tools.RegisterChatTools(mcpSrv, serverContext, chat_tools.NewOutbox()); err != nil {
		return fmt.Errorf("failed to register chat tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()

	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	markdown := generateToolsMarkdown(tools, prefix)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

func generateToolsMarkdown(tools []mcp.Tool, prefix string) string {
	var sb strings.Builder

	sb.WriteString("# officebot Reference\n\n")
	sb.WriteString("This document lists the chat commands of officebot and the tools available when running it with the mcp transport.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the command and tool definitions.\n\n")

	toolsByCategory := groupToolsByCategory(tools)
	categories := slices.Sorted(maps.Keys(toolsByCategory))

	sb.WriteString("## Table of Contents\n\n")
	sb.WriteString("- [Chat Commands](#chat-commands)\n")
	for _, category := range categories {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor(category))
	}
	sb.WriteString("\n")

	sb.WriteString("## Chat Commands\n\n")
	sb.WriteString("```\n")
	sb.WriteString(chat.HelpText(prefix))
	sb.WriteString("\n```\n\n")
	fmt.Fprintf(&sb, "`%ssetupmeeting` asks for the topic, the start time (RFC 3339, e.g. `2026-03-01T15:00:00Z`), ", prefix)
	sb.WriteString("the duration in minutes and the platform (Zoom or Google Meet). ")
	sb.WriteString("Each question times out when it is not answered.\n\n")

	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		slices.SortFunc(categoryTools, func(a, b mcp.Tool) int {
			return strings.Compare(a.Name, b.Name)
		})

		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool))
		}
	}

	return sb.String()
}

func anchor(heading string) string {
	return strings.ToLower(strings.ReplaceAll(heading, " ", "-"))
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}
	return categories
}

// getCategoryFromToolName maps the tool name prefix to a section title.
func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "chat":
		return "Chat Tools"
	default:
		return "Other"
	}
}

// generateToolMarkdown renders one tool with an argument table.
func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		sb.WriteString(tool.Description + "\n\n")
	}

	if len(tool.InputSchema.Properties) == 0 {
		return sb.String()
	}

	sb.WriteString("| Argument | Type | Required | Description |\n")
	sb.WriteString("|----------|------|----------|-------------|\n")
	for _, name := range slices.Sorted(maps.Keys(tool.InputSchema.Properties)) {
		prop, ok := tool.InputSchema.Properties[name].(map[string]any)
		if !ok {
			continue
		}
		required := "no"
		if slices.Contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		desc, _ := prop["description"].(string)
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", name, getPropertyType(prop), required, desc)
	}
	sb.WriteString("\n")

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
