// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes collection tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cowbump/internal/catalog"
	"github.com/starford/cowbump/internal/filter"
)

const queryURI = "cowbump://query-syntax"

// Server wraps the MCP server with collection tools. Tool calls are
// serialized; the catalog is never touched by two handlers at once.
type Server struct {
	mu       sync.Mutex
	mcp      *server.MCPServer
	cat      *catalog.Catalog
	autosave bool
	logger   *slog.Logger
}

// New creates a new MCP server with all tools registered. With autosave,
// every successful mutating call writes the snapshot.
func New(cat *catalog.Catalog, autosave bool, logger *slog.Logger) *Server {
	s := &Server{cat: cat, autosave: autosave, logger: logger}

	s.mcp = server.NewMCPServer(
		"cowbump",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("filter_entries",
		mcp.WithDescription("List entries matching a tag query. Read get_query_syntax for the token format."),
		mcp.WithString("query", mcp.Description("Query text; empty matches everything")),
		mcp.WithBoolean("expand", mcp.Description("Treat implied tags as carried")),
	), s.filterEntries)

	s.mcp.AddTool(mcp.NewTool("complete_query",
		mcp.WithDescription("Suggest tag names for the last word of a partial query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Partial query text")),
	), s.completeQuery)

	s.mcp.AddTool(mcp.NewTool("describe_entry",
		mcp.WithDescription("Show the tags and sequences of one entry."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the collection root")),
	), s.describeEntry)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag with aliases, implications and usage count."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("list_sequences",
		mcp.WithDescription("List every sequence with its entries in order."),
	), s.listSequences)

	s.mcp.AddTool(mcp.NewTool("tag_entry",
		mcp.WithDescription("Attach tags to an entry."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the collection root")),
		mcp.WithArray("tags", mcp.Required(), mcp.Description("Tag names or aliases"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("create", mcp.Description("Create tags that do not exist yet")),
	), s.tagEntry)

	s.mcp.AddTool(mcp.NewTool("untag_entry",
		mcp.WithDescription("Detach tags from an entry."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the collection root")),
		mcp.WithArray("tags", mcp.Required(), mcp.Description("Tag names or aliases"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.untagEntry)

	s.mcp.AddTool(mcp.NewTool("create_tag",
		mcp.WithDescription("Create a tag with optional aliases."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Canonical name")),
		mcp.WithArray("aliases", mcp.Description("Additional names"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.createTag)

	s.mcp.AddTool(mcp.NewTool("add_implication",
		mcp.WithDescription("Make one tag imply another."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Implying tag")),
		mcp.WithString("implies", mcp.Required(), mcp.Description("Implied tag")),
	), s.addImplication)

	s.mcp.AddTool(mcp.NewTool("rescan",
		mcp.WithDescription("Reconcile the collection with the files on disk."),
	), s.rescan)

	s.mcp.AddTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns the query language reference."),
	), s.getQuerySyntax)

	s.mcp.AddResource(
		mcp.NewResource(queryURI, "Query Syntax",
			mcp.WithResourceDescription("The filter query language."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntaxResource,
	)

	return s
}

// Listen serves MCP requests read from in until in is exhausted or ctx is
// cancelled. Cancellation is a clean shutdown.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// commit persists a mutation when autosave is on.
func (s *Server) commit() error {
	if !s.autosave {
		return nil
	}
	return s.cat.Save()
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// stringsArg reads an array argument. A plain string is split on commas.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []string:
		out = v
	case []any:
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolArg(req mcp.CallToolRequest, key string) bool {
	b, _ := req.GetArguments()[key].(bool)
	return b
}

func stringArg(req mcp.CallToolRequest, key string) string {
	str, _ := req.GetArguments()[key].(string)
	return str
}

func (s *Server) filterEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.cat.Query(stringArg(req, "query"), boolArg(req, "expand"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) completeQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	suggestions := filter.Complete(query, s.cat.Collection())
	if len(suggestions) == 0 {
		return mcp.NewToolResultText("no suggestions"), nil
	}
	return mcp.NewToolResultText(strings.Join(suggestions, "\n")), nil
}

func (s *Server) describeEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.cat.Describe(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(info), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsonResult(s.cat.Tags()), nil
}

func (s *Server) listSequences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsonResult(s.cat.Sequences()), nil
}

func (s *Server) tagEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags := stringsArg(req, "tags")
	if len(tags) == 0 {
		return mcp.NewToolResultError("tags: at least one tag is required"), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cat.TagEntry(path, tags, boolArg(req, "create")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.commit(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("tagged: %s", path)), nil
}

func (s *Server) untagEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags := stringsArg(req, "tags")
	if len(tags) == 0 {
		return mcp.NewToolResultError("tags: at least one tag is required"), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cat.UntagEntry(path, tags); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.commit(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("untagged: %s", path)), nil
}

func (s *Server) createTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names := append([]string{name}, stringsArg(req, "aliases")...)
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cat.Collection()
	for _, n := range names {
		if _, taken := c.ResolveAlias(n); taken {
			return mcp.NewToolResultError(fmt.Sprintf("tag already exists: %s", n)), nil
		}
	}
	id, err := c.AddTag(names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.commit(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("mcp: tag created", slog.String("name", name), slog.Uint64("id", uint64(id)))
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
}

func (s *Server) addImplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	implied, err := req.RequireString("implies")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.cat.ResolveTags([]string{tag, implied}, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.cat.Collection().AddImplication(ids[0], ids[1]); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.commit(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s now implies %s", tag, implied)), nil
}

func (s *Server) rescan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, err := s.cat.Reconcile()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rep.Changed() {
		if err := s.commit(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("added %d, removed %d", len(rep.Added), len(rep.Removed))), nil
}

func (s *Server) getQuerySyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readQuerySyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      queryURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
