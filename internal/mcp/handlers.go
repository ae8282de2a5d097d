package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/control"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/ops"
	"github.com/hpungsan/elclones/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	surface *control.Surface
	records store.Records
	cfg     *config.Config
}

// NewHandlers creates a new Handlers instance. records backs export and
// import; nil disables both with STORE_UNAVAILABLE.
func NewHandlers(surface *control.Surface, records store.Records, cfg *config.Config) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{surface: surface, records: records, cfg: cfg}
}

// ExtensionToggleRequest represents the arguments for extension_toggle.
type ExtensionToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// ElementHighlightRequest represents the arguments for element_highlight.
type ElementHighlightRequest struct {
	ID          string `json:"id"`
	Highlighted *bool  `json:"highlighted,omitempty"`
}

// ElementListRequest represents the arguments for element_list.
type ElementListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ElementFetchRequest represents the arguments for element_fetch.
type ElementFetchRequest struct {
	ID            string `json:"id"`
	IncludeHTML   *bool  `json:"include_html,omitempty"`
	IncludeStyles *bool  `json:"include_styles,omitempty"`
}

// ElementExportRequest represents the arguments for element_export.
type ElementExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ElementImportRequest represents the arguments for element_import.
type ElementImportRequest struct {
	Path string `json:"path"`
}

// ToggleResult is returned by extension_toggle and element_highlight.
type ToggleResult struct {
	Enabled     *bool  `json:"enabled,omitempty"`
	ID          string `json:"id,omitempty"`
	Highlighted *bool  `json:"highlighted,omitempty"`
	Delivered   bool   `json:"delivered"`
}

// StatusResult is returned by extension_status.
type StatusResult struct {
	Enabled     bool     `json:"enabled"`
	Highlighted []string `json:"highlighted"`
}

// ListResult is returned by element_list.
type ListResult struct {
	Items      []control.Item `json:"items"`
	Pagination ops.Pagination `json:"pagination"`
}

// HandleExtensionToggle handles the extension_toggle tool call.
func (h *Handlers) HandleExtensionToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExtensionToggleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Enabled == nil {
		return errorResult(errors.NewInvalidRequest("enabled is required")), nil
	}

	delivered, err := h.surface.ToggleExtension(ctx, *input.Enabled)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ToggleResult{Enabled: input.Enabled, Delivered: delivered})
}

// HandleExtensionStatus handles the extension_status tool call.
func (h *Handlers) HandleExtensionStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, err := h.surface.Init(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(StatusResult{Enabled: enabled, Highlighted: h.surface.Highlighted()})
}

// HandleElementHighlight handles the element_highlight tool call.
func (h *Handlers) HandleElementHighlight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementHighlightRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	on := true
	if input.Highlighted != nil {
		on = *input.Highlighted
	}

	delivered, err := h.surface.ToggleElementHighlight(ctx, input.ID, on)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ToggleResult{ID: input.ID, Highlighted: &on, Delivered: delivered})
}

// HandleElementList handles the element_list tool call.
func (h *Handlers) HandleElementList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	items, err := h.surface.Items(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	page, p := ops.Page(items, input.Limit, input.Offset)
	return successResult(ListResult{Items: page, Pagination: p})
}

// HandleElementFetch handles the element_fetch tool call.
func (h *Handlers) HandleElementFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementFetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.surface, ops.FetchInput{
		ID:            input.ID,
		IncludeHTML:   input.IncludeHTML,
		IncludeStyles: input.IncludeStyles,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleElementExport handles the element_export tool call.
func (h *Handlers) HandleElementExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.records == nil {
		return errorResult(errors.NewStoreUnavailable("export needs the element store")), nil
	}

	result, err := ops.Export(ctx, h.records, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleElementImport handles the element_import tool call.
func (h *Handlers) HandleElementImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElementImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.records == nil {
		return errorResult(errors.NewStoreUnavailable("import needs the element store")), nil
	}

	result, err := ops.Import(ctx, h.records, h.cfg, ops.ImportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// decode unmarshals MCP request arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// errorResult creates an MCP error result. INTERNAL errors carry a fixed
// message and no details so SQL errors and file paths stay out of replies.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    string(errors.ErrInternal),
		"message": "an internal error occurred",
		"status":  500,
	}
	if elErr, ok := errors.As(err); ok && elErr.Code != errors.ErrInternal {
		errorObj["code"] = string(elErr.Code)
		errorObj["message"] = elErr.Message
		if err != error(elErr) {
			errorObj["message"] = err.Error()
		}
		errorObj["status"] = elErr.Status
		if elErr.Details != nil {
			errorObj["details"] = elErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
