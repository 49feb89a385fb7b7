package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/dto"
	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const catalogURI = "rux://catalog"

// StateResponse is the result of the state tools.
type StateResponse struct {
	Path  string `json:"path" jsonschema_description:"The Slice.field path"`
	Value any    `json:"value" jsonschema_description:"The committed value at path"`
}

// StoreResponse is the result of the store tools.
type StoreResponse struct {
	Slices map[string]map[string]any `json:"slices" jsonschema_description:"Field values of every root slice"`
}

// Engine defines what the MCP server needs from a rux engine.
type Engine interface {
	Catalog() *domain.Catalog
	GetState(path domain.StatePath) (any, error)
	DispatchState(path domain.StatePath, value any) error
	DispatchByName(slice, reducer string, payload ...any) error
	DumpStore() (map[string]map[string]any, error)
}

var _ Engine = (*rux.Engine)(nil)

// Server wraps a rux engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mu        sync.Mutex
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("rux-mcp", rux.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the committed value of a slice field."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Field path as Slice.field")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("dispatch_state",
		mcp.WithDescription("Replace the value of a slice field. Subscribers and reactions are notified."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Field path as Slice.field")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value, JSON encoded")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleDispatchState))

	s.mcpServer.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Run a named reducer of a slice type."),
		mcp.WithString("slice", mcp.Required(), mcp.Description("Slice type name")),
		mcp.WithString("reducer", mcp.Required(), mcp.Description("Reducer name")),
		mcp.WithString("payload", mcp.Description("Reducer payload, JSON encoded (optional)")),
		mcp.WithOutputSchema[StoreResponse](),
	), mcp.NewStructuredToolHandler(s.handleDispatch))

	s.mcpServer.AddTool(mcp.NewTool("dump_store",
		mcp.WithDescription("Dump the field values of every root slice."),
		mcp.WithOutputSchema[StoreResponse](),
	), mcp.NewStructuredToolHandler(s.handleDumpStore))
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	path, err := pathArg(args)
	if err != nil {
		return StateResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	value, err := s.engine.GetState(path)
	if err != nil {
		return StateResponse{}, fmt.Errorf("get_state failed: %w", err)
	}
	return StateResponse{Path: path.String(), Value: value}, nil
}

func (s *Server) handleDispatchState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	path, err := pathArg(args)
	if err != nil {
		return StateResponse{}, err
	}
	raw, _ := args["value"].(string)
	value, err := decodeJSON(raw)
	if err != nil {
		return StateResponse{}, fmt.Errorf("invalid value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.DispatchState(path, value); err != nil {
		s.logger.Warn("MCP dispatch_state rejected", "path", path.String(), "err", err)
		return StateResponse{}, fmt.Errorf("dispatch_state failed: %w", err)
	}
	committed, err := s.engine.GetState(path)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{Path: path.String(), Value: committed}, nil
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StoreResponse, error) {
	slice, _ := args["slice"].(string)
	reducer, _ := args["reducer"].(string)

	var payload []any
	if raw, ok := args["payload"].(string); ok && raw != "" {
		p, err := decodeJSON(raw)
		if err != nil {
			return StoreResponse{}, fmt.Errorf("invalid payload: %w", err)
		}
		payload = append(payload, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.DispatchByName(slice, reducer, payload...); err != nil {
		s.logger.Warn("MCP dispatch rejected", "slice", slice, "reducer", reducer, "err", err)
		return StoreResponse{}, fmt.Errorf("dispatch failed: %w", err)
	}
	dump, err := s.engine.DumpStore()
	if err != nil {
		return StoreResponse{}, err
	}
	return StoreResponse{Slices: dump}, nil
}

func (s *Server) handleDumpStore(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StoreResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dump, err := s.engine.DumpStore()
	if err != nil {
		return StoreResponse{}, fmt.Errorf("dump_store failed: %w", err)
	}
	return StoreResponse{Slices: dump}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Slice catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := s.catalogJSON()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      catalogURI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})
}

func (s *Server) catalogJSON() (string, error) {
	data, err := json.Marshal(dto.DescribeCatalog(s.engine.Catalog()))
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	return string(data), nil
}

func pathArg(args map[string]interface{}) (domain.StatePath, error) {
	raw, _ := args["path"].(string)
	return domain.ParsePath(raw)
}

func decodeJSON(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
