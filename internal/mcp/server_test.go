package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type nopAudit struct{}

func (nopAudit) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	return nil
}

func rpc(t *testing.T, srv *Server, body string) JSONRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleRPC(w, req)

	var resp JSONRPCResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCallTool_MalformedArguments(t *testing.T) {
	srv := NewServer(nil, nopAudit{}, 5, 0.3, "0")

	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_documents","arguments":"not-an-object"}}`)
	if resp.Error == nil {
		t.Fatal("expected an error for malformed arguments")
	}
	if resp.Error.Code != -32602 {
		t.Fatalf("expected -32602 invalid params, got %d (%s)", resp.Error.Code, resp.Error.Message)
	}
}

func TestCallTool_MissingRequiredArguments(t *testing.T) {
	srv := NewServer(nil, nopAudit{}, 5, 0.3, "0")

	for _, tool := range []string{"search_documents", "ask_documents"} {
		resp := rpc(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"`+tool+`","arguments":{}}}`)
		if resp.Error == nil || resp.Error.Code != -32602 {
			t.Fatalf("%s: expected -32602 for empty arguments, got %+v", tool, resp.Error)
		}
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	srv := NewServer(nil, nopAudit{}, 5, 0.3, "0")

	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602 for unknown tool, got %+v", resp.Error)
	}
}

func TestHandleRPC_MethodNotFound(t *testing.T) {
	srv := NewServer(nil, nopAudit{}, 5, 0.3, "0")

	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":4,"method":"bogus"}`)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601 method not found, got %+v", resp.Error)
	}
}

func TestHandleRPC_ListTools(t *testing.T) {
	srv := NewServer(nil, nopAudit{}, 5, 0.3, "0")

	resp := rpc(t, srv, `{"jsonrpc":"2.0","id":5,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", resp.Result)
	}
	tools, ok := result["tools"].([]interface{})
	if !ok || len(tools) != 2 {
		t.Fatalf("expected two tools, got %+v", result["tools"])
	}
}
