// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes chainval tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/rebase"
	"github.com/starford/chainval/internal/report"
)

// ChainFormatURI is the resource URI of the chain format contract.
const ChainFormatURI = "chainval://chain-format"

// Server wraps the MCP server with chainval tools.
type Server struct {
	mcp *server.MCPServer
	svc *chainservice.Service
}

// New creates a new MCP server with all chainval tools registered.
func New(svc *chainservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"chainval",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate_chain",
		mcp.WithDescription("Validate a chain file against the configured rule set. "+
			"With auto_fix, fixable issues are repaired and the file is written back."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the chain file (e.g. releases/spring.properties)")),
		mcp.WithBoolean("auto_fix", mcp.Description("Repair auto-fixable issues and write the file back")),
	), s.validateChain)

	s.mcp.AddTool(mcp.NewTool("analyze_versions",
		mcp.WithDescription("Show the current version of a chain file and the version of every project."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the chain file")),
	), s.analyzeVersions)

	s.mcp.AddTool(mcp.NewTool("rebase_chain",
		mcp.WithDescription("Move a chain file to a new version. Updates the global version.binary "+
			"and the tag or version key of the selected projects (all projects when none are given)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the chain file")),
		mcp.WithString("new_version", mcp.Required(), mcp.Description("Version to move to (e.g. 20500)")),
		mcp.WithArray("projects", mcp.Description("Projects to rebase; empty for all"), mcp.WithStringItems()),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing")),
	), s.rebaseChain)

	s.mcp.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List the configured validation rules and any rule configuration errors."),
	), s.listRules)

	s.mcp.AddTool(mcp.NewTool("get_chain_format",
		mcp.WithDescription("Returns the chain file format contract. "+
			"Call this before editing chain files to keep their structure valid."),
	), s.getChainFormat)

	// Resource: chain format contract.
	s.mcp.AddResource(
		mcp.NewResource(ChainFormatURI, "Chain Format Contract",
			mcp.WithResourceDescription("Chain file format understood by the validator and rebase engine."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readChainFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a domain error into a tool-result error message.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, rebase.ErrVersionNotFound):
		return mcp.NewToolResultError("chain has no current version (global version.binary)")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Validate(ctx, path, req.GetBool("auto_fix", false))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(out)
}

func (s *Server) analyzeVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Versions(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	var buf bytes.Buffer
	if err := report.Versions(&buf, report.FormatText, v); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) rebaseChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	version, err := req.RequireString("new_version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.svc.Rebase(ctx, chainservice.RebaseRequest{
		Path:       path,
		NewVersion: version,
		Projects:   req.GetStringSlice("projects", nil),
		DryRun:     req.GetBool("dry_run", false),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(out)
}

func (s *Server) listRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := s.svc.Validator()
	var buf bytes.Buffer
	if err := report.Rules(&buf, report.FormatText, v.Rules()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if errs := v.ConfigErrors(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		fmt.Fprintf(&buf, "\nConfiguration errors:\n%s\n", strings.Join(msgs, "\n"))
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) getChainFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChainFormatContract), nil
}

func (s *Server) readChainFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ChainFormatURI,
			MIMEType: "text/markdown",
			Text:     ChainFormatContract,
		},
	}, nil
}
