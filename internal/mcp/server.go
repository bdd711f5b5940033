package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/service"
)

// errInvalidParams marks request errors that map to JSON-RPC -32602.
var errInvalidParams = errors.New("invalid params")

// AuditWriter records tool invocations.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// Server implements the Model Context Protocol (MCP) server.
// It exposes document search and question answering to external AI agents.
type Server struct {
	chatService *service.ChatService
	audit       AuditWriter
	topK        int
	threshold   float64
	port        string
}

// NewServer creates a new MCP server.
func NewServer(chatService *service.ChatService, audit AuditWriter, topK int, threshold float64, port string) *Server {
	return &Server{
		chatService: chatService,
		audit:       audit,
		topK:        topK,
		threshold:   threshold,
		port:        port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)

	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "docuchat",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		code := -32603
		if errors.Is(err, errInvalidParams) {
			code = -32602
		}
		writeError(w, req.ID, code, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial endpoint message
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	w.(http.Flusher).Flush()

	// Keep connection alive
	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "search_documents",
			Description: "Search a user's documents using semantic similarity",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"user_id": {"type": "string", "description": "Owner of the documents"},
					"query": {"type": "string", "description": "Search query"},
					"top_k": {"type": "integer", "description": "Maximum number of results"}
				},
				"required": ["user_id", "query"]
			}`),
		},
		{
			Name:        "ask_documents",
			Description: "Answer a question using a user's documents as context",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"user_id": {"type": "string", "description": "Owner of the documents"},
					"query": {"type": "string", "description": "Question to answer"},
					"language": {"type": "string", "description": "Answer language, en or es; detected when omitted"}
				},
				"required": ["user_id", "query"]
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	go func(tool string) {
		if err := s.audit.WriteAudit("mcp", domain.AuditActionMCPCall, "tool", tool, "{}", "", "mcp"); err != nil {
			slog.Error("failed to write audit log", "tool", tool, "error", err)
		}
	}(req.Name)

	switch req.Name {
	case "search_documents":
		var args struct {
			UserID string `json:"user_id"`
			Query  string `json:"query"`
			TopK   int    `json:"top_k"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if args.UserID == "" || args.Query == "" {
			return nil, fmt.Errorf("%w: user_id and query are required", errInvalidParams)
		}

		topK := args.TopK
		if topK <= 0 {
			topK = s.topK
		}
		chunks, err := s.chatService.Search(ctx, args.UserID, args.Query, topK, s.threshold)
		if err != nil {
			return nil, err
		}

		text := fmt.Sprintf("Found %d matching chunks", len(chunks))
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"results": chunks,
		}, nil

	case "ask_documents":
		var args struct {
			UserID   string `json:"user_id"`
			Query    string `json:"query"`
			Language string `json:"language"`
		}
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		if args.UserID == "" || args.Query == "" {
			return nil, fmt.Errorf("%w: user_id and query are required", errInvalidParams)
		}

		answer, _, chunks, err := s.chatService.Answer(ctx, args.UserID, args.Query, s.topK, s.threshold, args.Language)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": answer},
			},
			"sources": chunks,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tool %q", errInvalidParams, req.Name)
	}
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
