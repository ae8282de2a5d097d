// Package mcp exposes the control surface and the offline element
// operations as MCP tools over stdio.
package mcp

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/logging"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"element", "extension"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"extension_toggle": {
		def:     extensionToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExtensionToggle },
	},
	"extension_status": {
		def:     extensionStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExtensionStatus },
	},
	"element_highlight": {
		def:     elementHighlightToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementHighlight },
	},
	"element_list": {
		def:     elementListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementList },
	},
	"element_fetch": {
		def:     elementFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementFetch },
	},
	"element_export": {
		def:     elementExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementExport },
	},
	"element_import": {
		def:     elementImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleElementImport },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the names that are not registered tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the names that are not known types.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type from a "type_action" tool name.
func GetTypeForTool(toolName string) string {
	if typ, _, ok := strings.Cut(toolName, "_"); ok && typ != "" {
		return typ
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	tools := make([]string, 0)
	for name := range toolRegistry {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the elclones tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are left out.
func NewServer(h *Handlers, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"elclones",
		version,
		server.WithToolCapabilities(true),
	)

	disabled := make(map[string]bool)
	if cfg != nil {
		for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
			disabled[tool] = true
		}
		for _, name := range cfg.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Serve runs s over stdio until ctx is done or stdin closes.
// Transport errors go to log; stdout carries protocol frames only.
func Serve(ctx context.Context, s *server.MCPServer, log *zap.Logger) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(zap.NewStdLog(logging.OrNop(log).Named("mcp")))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
