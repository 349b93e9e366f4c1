package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/traffic"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const stepTypesURI = "apptrail://step-types"

// WorkflowResponse carries one workflow in both of its encodings.
type WorkflowResponse struct {
	Text string `json:"text" jsonschema_description:"The workflow in the line-oriented text form"`
	JSON string `json:"json" jsonschema_description:"The workflow as {\"steps\": [...]} JSON"`
}

// ReconstructResponse is a workflow rebuilt from captured traffic.
type ReconstructResponse struct {
	WorkflowResponse
	Domain  string `json:"domain"`
	AppID   string `json:"app_id"`
	BaseURL string `json:"base_url"`
}

// Server exposes workflow conversion, reconstruction and storage as MCP tools.
type Server struct {
	store     ports.WorkflowStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithStore enables the stored workflow tools.
func WithStore(store ports.WorkflowStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(version string, opts ...Option) *Server {
	s := &Server{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("apptrail-mcp", strings.TrimSpace(version))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
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
	s.mcpServer.AddTool(mcp.NewTool("parse_workflow",
		mcp.WithDescription("Parse a workflow written one directive per line and return it in both encodings."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Workflow text, e.g. 'Select menu \"Patients\"'")),
		mcp.WithOutputSchema[WorkflowResponse](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("format_workflow",
		mcp.WithDescription("Render a JSON workflow as text."),
		mcp.WithString("json", mcp.Required(), mcp.Description(`Workflow JSON: {"steps": [...]}`)),
		mcp.WithOutputSchema[WorkflowResponse](),
	), mcp.NewStructuredToolHandler(s.handleFormat))

	s.mcpServer.AddTool(mcp.NewTool("reconstruct_workflow",
		mcp.WithDescription("Rebuild the workflow that produced a HAR capture of a browser session."),
		mcp.WithString("har", mcp.Required(), mcp.Description("HAR 1.2 document")),
		mcp.WithOutputSchema[ReconstructResponse](),
	), mcp.NewStructuredToolHandler(s.handleReconstruct))

	if s.store == nil {
		return
	}

	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the ids of stored workflows."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.store.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Load a stored workflow by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
		mcp.WithOutputSchema[WorkflowResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))
}

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (WorkflowResponse, error) {
	text, _ := args["text"].(string)
	wf, err := dsl.ParseString(text)
	if err != nil {
		return WorkflowResponse{}, err
	}
	return respond(wf)
}

func (s *Server) handleFormat(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (WorkflowResponse, error) {
	raw, _ := args["json"].(string)
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return WorkflowResponse{}, fmt.Errorf("invalid workflow json: %w", err)
	}
	return respond(wf)
}

func (s *Server) handleReconstruct(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ReconstructResponse, error) {
	har, _ := args["har"].(string)
	entries, err := traffic.ReadHAR(strings.NewReader(har))
	if err != nil {
		return ReconstructResponse{}, err
	}
	res, err := traffic.Reconstruct(entries, traffic.WithLogger(s.logger))
	if err != nil {
		return ReconstructResponse{}, err
	}
	wr, err := respond(res.Workflow)
	if err != nil {
		return ReconstructResponse{}, err
	}
	return ReconstructResponse{WorkflowResponse: wr, Domain: res.Domain, AppID: res.AppID, BaseURL: res.BaseURL}, nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (WorkflowResponse, error) {
	id, _ := args["id"].(string)
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, domain.ErrWorkflowNotFound) {
		return WorkflowResponse{}, fmt.Errorf("workflow %q not found", id)
	}
	if err != nil {
		return WorkflowResponse{}, err
	}
	return respond(rec.Workflow)
}

func respond(wf workflow.Workflow) (WorkflowResponse, error) {
	text, err := dsl.Format(wf)
	if err != nil {
		return WorkflowResponse{}, err
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return WorkflowResponse{}, err
	}
	return WorkflowResponse{Text: text, JSON: string(data)}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(stepTypesURI, "Step and expectation types",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(map[string][]string{
			"steps":        workflow.StepTags(),
			"expectations": workflow.ExpectationTags(),
		})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      stepTypesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
