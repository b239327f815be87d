// Package mcpserver exposes the engine's query surface as an MCP tool set
// over stdio: search_grep, search_fast, search_find,
// search_definitions, search_callers, search_info, search_help, and
// search_reindex.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
	"github.com/standardbeagle/codeindex/internal/diag"
	"github.com/standardbeagle/codeindex/internal/fileindex"
)

// Engine is the minimal surface mcpserver needs from the rest of the
// module: the three live indexes plus a reindex hook. cmd/codeindex wires
// the concrete instances together; mcpserver only depends on this
// interface so its tests can supply fakes.
type Engine interface {
	Content() *contentindex.ContentIndex
	Defs() *defindex.DefinitionIndex
	Files() *fileindex.FileIndex
	Reindex(ctx context.Context) (ReindexStats, error)
}

// ReindexStats summarizes a search_reindex run.
type ReindexStats struct {
	FilesIndexed  int
	DefsIndexed   int
	TokensIndexed int
	Elapsed       time.Duration
}

// Server wraps an MCP server registered with all eight tools.
type Server struct {
	engine Engine
	log    *diag.Logger
	server *mcp.Server
}

// New builds a Server bound to engine, registers every tool, and returns
// it ready for Run.
func New(engine Engine, log *diag.Logger) *Server {
	if log == nil {
		log = diag.Default()
	}
	s := &Server{engine: engine, log: log}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codeindex-mcp-server",
		Version: "0.1.0",
	}, &mcp.ServerOptions{
		Instructions: "Code-intelligence search over a pre-built local index. " +
			"Start with search_help for the tool reference; search_grep finds content, " +
			"search_definitions finds declarations, search_callers walks the call graph.",
	})
	s.registerTools()
	return s
}

// Run serves the registered tools over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search_help",
		Description: "Overview of all search tools and common argument combinations. Call with no arguments, or with 'tool' set to one of the tool names for specifics.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"tool": {Type: "string", Description: "Tool name to describe, e.g. 'search_grep'"},
			},
		},
	}, s.handleHelp)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_grep",
		Description: "Token, substring, or phrase search across the content index. Defaults to substring matching so compound identifiers are always found; set regex or phrase for other modes.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"terms":        {Type: "string", Description: "Search terms, comma-separated for OR"},
				"dir":          {Type: "string", Description: "Restrict to files under this directory"},
				"ext":          {Type: "string", Description: "Restrict to files with this extension"},
				"mode":         {Type: "string", Description: "'or' (default) or 'and' term combination"},
				"regex":        {Type: "boolean", Description: "Treat terms as a regex over indexed tokens"},
				"phrase":       {Type: "boolean", Description: "Treat the whole terms string, commas included, as one literal phrase"},
				"substring":    {Type: "boolean", Description: "Substring match (default true unless regex/phrase set)"},
				"contextLines": {Type: "integer", Description: "Lines of context around each match"},
				"showLines":    {Type: "boolean", Description: "Include matched line text in results"},
				"maxResults":   {Type: "integer", Description: "Cap on returned files (default 50)"},
				"countOnly":    {Type: "boolean", Description: "Return only aggregate counts"},
				"excludeDir":   {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Substrings of paths to exclude"},
				"exclude":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Additional path substrings to exclude"},
			},
			Required: []string{"terms"},
		},
	}, s.handleGrep)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_fast",
		Description: "Fast file-name search over the flat file listing, ranked by exact/prefix/contains match tier.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":    {Type: "string", Description: "Comma-separated OR terms matched against file names"},
				"dir":        {Type: "string", Description: "Restrict to this directory"},
				"ext":        {Type: "string", Description: "Restrict to this extension"},
				"regex":      {Type: "boolean", Description: "Treat each term as a regex"},
				"ignoreCase": {Type: "boolean", Description: "Case-insensitive match"},
				"dirsOnly":   {Type: "boolean", Description: "Only directories"},
				"filesOnly":  {Type: "boolean", Description: "Only files"},
				"countOnly":  {Type: "boolean", Description: "Return only aggregate counts"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleFast)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_find",
		Description: "Recursive file-name search combined with an optional content grep per matched file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":    {Type: "string", Description: "File name pattern, substring or regex"},
				"dir":        {Type: "string", Description: "Directory to search under (default index root)"},
				"ext":        {Type: "string", Description: "Restrict to this extension"},
				"contents":   {Type: "string", Description: "Optional: also grep file contents for this term"},
				"regex":      {Type: "boolean", Description: "Treat pattern as a regex"},
				"ignoreCase": {Type: "boolean", Description: "Case-insensitive match"},
				"maxDepth":   {Type: "integer", Description: "Max directory depth below dir; 0 means unbounded"},
				"countOnly":  {Type: "boolean", Description: "Return only aggregate counts"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleFind)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_definitions",
		Description: "Look up definitions (classes, methods, functions, ...) by name, kind, attribute, base type, parent, or containing file/line.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":              {Type: "string", Description: "Comma-separated names to match"},
				"kind":              {Type: "string", Description: "Definition kind, e.g. 'class', 'method'"},
				"attribute":         {Type: "string", Description: "Attribute/annotation name"},
				"baseType":          {Type: "string", Description: "Base class or implemented interface"},
				"parent":            {Type: "string", Description: "Enclosing type name"},
				"file":              {Type: "string", Description: "Restrict to definitions in this file"},
				"containsLine":      {Type: "integer", Description: "Restrict to the definition spanning this line"},
				"includeBody":       {Type: "boolean", Description: "Inline each definition's source span"},
				"maxBodyLines":      {Type: "integer", Description: "Cap on body lines per definition (default 25)"},
				"maxTotalBodyLines": {Type: "integer", Description: "Cap on body lines across the whole response (default 500)"},
				"includeCodeStats":  {Type: "boolean", Description: "Include per-definition structural metrics"},
				"sortBy":            {Type: "string", Description: "'name', 'file', or 'lines' (default: definition order)"},
				"minLines":          {Type: "integer", Description: "Only definitions spanning at least this many lines"},
				"minParams":         {Type: "integer", Description: "Only methods with at least this many parameters"},
				"minCalls":          {Type: "integer", Description: "Only methods making at least this many calls"},
				"regex":             {Type: "boolean", Description: "Treat a single name as a regex"},
				"maxResults":        {Type: "integer", Description: "Cap on returned definitions"},
			},
		},
	}, s.handleDefinitions)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_callers",
		Description: "Walk the call graph: who calls a method (direction 'up') or what a method calls (direction 'down').",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method":            {Type: "string", Description: "Method name to seed the traversal from"},
				"class":             {Type: "string", Description: "Optional receiver type to scope the seed"},
				"direction":         {Type: "string", Description: "'up' (callers, default) or 'down' (callees)"},
				"depth":             {Type: "integer", Description: "Max BFS depth; 0 means unbounded up to the safety ceiling"},
				"resolveInterfaces": {Type: "boolean", Description: "Also seed from interface implementers"},
			},
			Required: []string{"method"},
		},
	}, s.handleCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_info",
		Description: "Report index health: file/definition/token counts, index age, and staleness.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_reindex",
		Description: "Force a synchronous full rebuild of the content and definition indexes, bypassing staleness checks.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleReindex)
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func createJSONResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	resp, marshalErr := createJSONResponse(map[string]any{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	// Errors from the tool itself are reported inside the result with
	// IsError set, not as a protocol-level error, so the caller can see
	// and react to them (MCP SDK convention).
	resp.IsError = true
	return resp, nil
}
