// Package tracker holds the per-file ToolUseTracker: a short-lived map
// from a tool_use_id to the tool invocation it named, letting a later
// tool_result block resolve which file (if any) a Read/Write/Edit call
// touched so file_references can be recorded without re-parsing the
// entire session from the start.
package tracker

// ToolCall is what a tool_use content block recorded about itself, kept
// just long enough for the matching tool_result block to resolve it.
type ToolCall struct {
	ToolName string
	FilePath string
}

// fileArgTools names the tool_use "name" values whose "input" carries a
// file path worth tracking, and the input key it's stored under.
var fileArgTools = map[string]string{
	"Read":      "file_path",
	"Write":     "file_path",
	"Edit":      "file_path",
	"MultiEdit": "file_path",
	"NotebookEdit": "notebook_path",
}

// ToolUseTracker is scoped to a single session file being processed; it
// is discarded once that file's lines are fully consumed.
type ToolUseTracker struct {
	calls map[string]ToolCall
}

// New returns an empty tracker.
func New() *ToolUseTracker {
	return &ToolUseTracker{calls: make(map[string]ToolCall)}
}

// InputKeyFor reports which input field, if any, carries a file path for
// the given tool name.
func InputKeyFor(toolName string) (key string, ok bool) {
	key, ok = fileArgTools[toolName]
	return key, ok
}

// Track records a tool_use block's id, name, and (if resolvable) the file
// path it targets.
func (t *ToolUseTracker) Track(toolUseID, toolName, filePath string) {
	t.calls[toolUseID] = ToolCall{ToolName: toolName, FilePath: filePath}
}

// Resolve looks up the tool_use a tool_result block's tool_use_id refers
// to, returning ok=false if the id was never tracked (e.g. its tool_use
// block fell outside this file's batch, or named a tool with no file
// argument).
func (t *ToolUseTracker) Resolve(toolUseID string) (ToolCall, bool) {
	call, ok := t.calls[toolUseID]
	return call, ok
}

// Operation maps a tool name to the file_references.operation value it
// should record.
func Operation(toolName string) string {
	switch toolName {
	case "Read":
		return "read"
	case "Write":
		return "write"
	case "Edit", "MultiEdit":
		return "edit"
	case "NotebookEdit":
		return "edit"
	default:
		return "reference"
	}
}
