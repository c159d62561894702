package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mcpTool describes one dex_* tool and how its arguments map onto the
// session's positional command protocol.
type mcpTool struct {
	name        string
	description string
	command     string
	args        []mcpArg
}

type mcpArg struct {
	name        string
	description string
	required    bool
}

var mcpTools = []mcpTool{
	{"dex_open", "Open an archive for editing.", "open",
		[]mcpArg{{"path", "Archive file path", true}}},
	{"dex_status", "Report the session state.", "status", nil},
	{"dex_list", "List classes, optionally for one image.", "list",
		[]mcpArg{{"image", "Image name filter", false}}},
	{"dex_summary", "Summarize one class.", "summary",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_class_info", "Describe a class's fields and methods.", "classInfo",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_get", "Disassemble a whole class.", "get",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_get_paged", "Disassemble a class page by page.", "getPaged",
		[]mcpArg{
			{"class", "Class identifier", true},
			{"offset", "Character offset", true},
			{"limit", "Page size in characters", false},
		}},
	{"dex_get_method", "Disassemble a single method.", "getMethod",
		[]mcpArg{
			{"class", "Class identifier", true},
			{"method", "Method name or name+signature", true},
		}},
	{"dex_to_java", "Decompile a class to Java-like source.", "toJava",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_deobfuscate", "Decompile with deterministic renaming of obfuscated identifiers.", "deobfuscate",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_decompile_package", "Decompile every class in a package, capped.", "decompilePackage",
		[]mcpArg{
			{"pattern", "Package pattern, e.g. com.example.*", true},
			{"max", "Class cap", false},
		}},
	{"dex_modify", "Replace a class with new smali source.", "modify",
		[]mcpArg{
			{"class", "Class identifier", true},
			{"source", "Whole-class smali source", true},
		}},
	{"dex_replace", "Find/replace text inside a class and re-assemble.", "replace",
		[]mcpArg{
			{"class", "Class identifier", true},
			{"old", "Text to find", true},
			{"new", "Replacement text", true},
			{"all", "Pass \"all\" to replace every occurrence", false},
		}},
	{"dex_delete_class", "Mark a class deleted.", "deleteClass",
		[]mcpArg{{"class", "Class identifier", true}}},
	{"dex_save", "Export the edited archive.", "save",
		[]mcpArg{{"path", "Output path; derived when omitted", false}}},
	{"dex_search_class", "Find classes by case-insensitive name regex.", "searchClass",
		[]mcpArg{{"pattern", "Regular expression", true}}},
	{"dex_search_string", "Find instructions containing a string.", "searchString",
		[]mcpArg{{"needle", "Substring to find", true}}},
	{"dex_search_method_calls", "Find call sites of a method.", "searchMethodCalls",
		[]mcpArg{{"needle", "Target method fragment", true}}},
	{"dex_search_field_refs", "Find reads and writes of a field.", "searchFieldRefs",
		[]mcpArg{{"needle", "Target field fragment", true}}},
	{"dex_search_integer", "Find constant loads of an integer value.", "searchInteger",
		[]mcpArg{{"value", "Integer, decimal or 0x hex", true}}},
	{"dex_find_subclasses", "Find direct subclasses and implementors.", "findSubclasses",
		[]mcpArg{{"class", "Superclass or interface identifier", true}}},
	{"dex_checkpoint", "Capture a named checkpoint.", "checkpoint",
		[]mcpArg{{"name", "Checkpoint name", true}}},
	{"dex_restore", "Restore a named checkpoint.", "restore",
		[]mcpArg{{"name", "Checkpoint name", true}}},
	{"dex_list_checkpoints", "List checkpoints.", "listCheckpoints", nil},
	{"dex_delete_checkpoint", "Delete a checkpoint.", "deleteCheckpoint",
		[]mcpArg{{"name", "Checkpoint name", true}}},
	{"dex_export_checkpoint", "Persist a checkpoint manifest to the workspace database.", "exportCheckpoint",
		[]mcpArg{{"name", "Checkpoint name", true}}},
	{"dex_set_auto_checkpoint", "Toggle automatic checkpoints before mutations.", "setAutoCheckpoint",
		[]mcpArg{{"mode", "on or off", true}}},
	{"dex_undo", "Undo the most recent edit.", "undo", nil},
	{"dex_redo", "Redo the most recently undone edit.", "redo", nil},
	{"dex_history", "Show the edit ledger.", "history", nil},
	{"dex_reset", "Discard all pending edits.", "reset", nil},
	{"dex_close", "Close the document.", "close", nil},
}

// RegisterMCP registers every command as a dex_* tool on an MCP
// server. Tool calls funnel into the same Dispatch the line protocol
// uses; the session mutex serializes them.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	for _, t := range mcpTools {
		s.registerTool(srv, t)
	}
}

func (s *Session) registerTool(srv *mcp.Server, t mcpTool) {
	properties := map[string]any{}
	var required []string
	for _, a := range t.args {
		properties[a.name] = map[string]any{"type": "string", "description": a.description}
		if a.required {
			required = append(required, a.name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	tool := &mcp.Tool{
		Name:        t.name,
		Description: t.description,
		InputSchema: schema,
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := positionalArgs(t, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp := s.Dispatch(t.command, args)
		if !resp.Success {
			var res mcp.CallToolResult
			res.SetError(errors.New(resp.Error))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// positionalArgs flattens named MCP arguments into the command
// protocol's positional form. Optional arguments bind in declared
// order; an omitted one must not be followed by a present one.
func positionalArgs(t mcpTool, raw json.RawMessage) ([]string, error) {
	named := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &named); err != nil {
			return nil, err
		}
	}
	var args []string
	for _, a := range t.args {
		v, ok := named[a.name]
		if !ok {
			if a.required {
				return nil, fmt.Errorf("missing required argument %q", a.name)
			}
			break
		}
		args = append(args, v)
	}
	return args, nil
}
