package mcp

import "github.com/mark3labs/mcp-go/mcp"

var extensionToggleToolDef = mcp.NewTool("extension_toggle",
	mcp.WithDescription("Turn element capture and cloning on or off. "+
		"The flag is persisted and sent to the active page; delivered is false when no page is attached."),
	mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New value of the extension flag")),
)

var extensionStatusToolDef = mcp.NewTool("extension_status",
	mcp.WithDescription("Report the persisted extension flag and the highlights set from this surface."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var elementHighlightToolDef = mcp.NewTool("element_highlight",
	mcp.WithDescription("Mark a captured element for cloning on the active page. "+
		"While any element is highlighted, clicking a page element appends the clone inside it."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Element id")),
	mcp.WithBoolean("highlighted", mcp.Description("Add (true, default) or remove (false) the highlight")),
)

var elementListToolDef = mcp.NewTool("element_list",
	mcp.WithDescription("List captured elements in capture order with their labels and highlight state."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var elementFetchToolDef = mcp.NewTool("element_fetch",
	mcp.WithDescription("Fetch one captured element: markup, computed styles, timestamp and name."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Element id")),
	mcp.WithBoolean("include_html", mcp.Description("Include the captured markup (default true)")),
	mcp.WithBoolean("include_styles", mcp.Description("Include the computed style JSON (default true)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var elementExportToolDef = mcp.NewTool("element_export",
	mcp.WithDescription("Export every captured element to a JSONL file."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file (default ~/.elclones/exports/elements-<timestamp>.jsonl)")),
)

var elementImportToolDef = mcp.NewTool("element_import",
	mcp.WithDescription("Append the elements of a JSONL export. Ids that are already stored are skipped."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl file")),
	mcp.WithDestructiveHintAnnotation(false),
)
