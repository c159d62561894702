package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "dexedit-test", Version: "0.1.0"}

func mcpSession(t *testing.T, s *Session) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		if len(result.Content) > 0 {
			if tc, ok := result.Content[0].(*mcp.TextContent); ok {
				return "", errors.New(tc.Text)
			}
		}
		return "", errors.New("tool error")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

func TestMCP_OpenAndGet(t *testing.T) {
	s := newTestSession(t)
	session := mcpSession(t, s)
	path := fixtureArchive(t)

	if _, err := mcpCallTool(t, session, "dex_open", map[string]any{"path": path}); err != nil {
		t.Fatalf("dex_open: %v", err)
	}

	text, err := mcpCallTool(t, session, "dex_get", map[string]any{"class": "Lcom/example/Main;"})
	if err != nil {
		t.Fatalf("dex_get: %v", err)
	}
	var resp struct {
		Data struct {
			Smali string `json:"smali"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(resp.Data.Smali, ".class public Lcom/example/Main;") {
		t.Errorf("smali = %q", resp.Data.Smali)
	}
}

func TestMCP_MissingRequiredArgument(t *testing.T) {
	s := newTestSession(t)
	session := mcpSession(t, s)

	_, err := mcpCallTool(t, session, "dex_open", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "path") {
		t.Errorf("error = %v, want complaint about missing path", err)
	}
}

func TestMCP_ErrorsSurfaceAsToolErrors(t *testing.T) {
	s := newTestSession(t)
	session := mcpSession(t, s)

	_, err := mcpCallTool(t, session, "dex_get", map[string]any{"class": "Lx/A;"})
	if err == nil || !strings.Contains(err.Error(), "no document open") {
		t.Errorf("error = %v, want no-document failure", err)
	}
}

func TestMCP_EditFlowSharesSessionState(t *testing.T) {
	s := newTestSession(t)
	session := mcpSession(t, s)
	path := fixtureArchive(t)

	if _, err := mcpCallTool(t, session, "dex_open", map[string]any{"path": path}); err != nil {
		t.Fatal(err)
	}
	if _, err := mcpCallTool(t, session, "dex_modify", map[string]any{
		"class":  "Lcom/example/Main;",
		"source": fixturePatched,
	}); err != nil {
		t.Fatalf("dex_modify: %v", err)
	}

	// The same session serves the line protocol view of that edit.
	res := s.Dispatch("status", nil)
	if res.Data.(map[string]any)["replaced"].(int) != 1 {
		t.Errorf("status after MCP edit = %+v", res.Data)
	}

	if _, err := mcpCallTool(t, session, "dex_undo", nil); err != nil {
		t.Fatalf("dex_undo: %v", err)
	}
	res = s.Dispatch("status", nil)
	if res.Data.(map[string]any)["historyCursor"].(int) != -1 {
		t.Errorf("cursor after undo = %+v", res.Data)
	}
}

func TestMCP_ToolListCoversCommandSurface(t *testing.T) {
	s := newTestSession(t)
	session := mcpSession(t, s)

	tools, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"dex_open", "dex_list", "dex_get", "dex_get_paged", "dex_modify",
		"dex_save", "dex_search_integer", "dex_checkpoint", "dex_undo",
		"dex_export_checkpoint", "dex_close",
	} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}
