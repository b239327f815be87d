package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codeindex/internal/callgraph"
	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
	"github.com/standardbeagle/codeindex/internal/errs"
	"github.com/standardbeagle/codeindex/internal/fileindex"
)

type grepParams struct {
	Terms        string   `json:"terms"`
	Dir          string   `json:"dir"`
	Ext          string   `json:"ext"`
	Mode         string   `json:"mode"`
	Regex        bool     `json:"regex"`
	Phrase       bool     `json:"phrase"`
	Substring    *bool    `json:"substring"`
	ContextLines int      `json:"contextLines"`
	ShowLines    bool     `json:"showLines"`
	MaxResults   int      `json:"maxResults"`
	CountOnly    bool     `json:"countOnly"`
	ExcludeDir   []string `json:"excludeDir"`
	Exclude      []string `json:"exclude"`
}

type lineBlockJSON struct {
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Text      []string `json:"text"`
}

type grepFileJSON struct {
	Path        string          `json:"path"`
	Score       float64         `json:"score"`
	Occurrences int             `json:"occurrences"`
	Lines       []uint32        `json:"lines"`
	LineContent []lineBlockJSON `json:"lineContent,omitempty"`
}

type grepSummary struct {
	TotalFiles   int `json:"totalFiles"`
	TotalMatches int `json:"totalMatches"`
}

type grepResponse struct {
	Files             []grepFileJSON `json:"files,omitempty"`
	MatchedTokens     []string       `json:"matchedTokens,omitempty"`
	Summary           grepSummary    `json:"summary"`
	ResponseTruncated bool           `json:"responseTruncated,omitempty"`
}

func splitComma(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) handleGrep(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p grepParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_grep", errs.InvalidArgs(err.Error()))
	}
	if strings.TrimSpace(p.Terms) == "" {
		return createErrorResponse("search_grep", errs.InvalidArgs("missing required parameter: terms"))
	}

	q := contentindex.Query{
		Terms:        splitComma(p.Terms),
		Regex:        p.Regex,
		Phrase:       p.Phrase,
		Substring:    p.Substring,
		Dir:          p.Dir,
		Ext:          p.Ext,
		ExcludeDir:   p.ExcludeDir,
		Exclude:      p.Exclude,
		ContextLines: p.ContextLines,
		ShowLines:    p.ShowLines,
		MaxResults:   defaultInt(p.MaxResults, 50),
		CountOnly:    p.CountOnly,
	}
	if p.Phrase {
		q.Terms = []string{p.Terms}
	}
	if strings.EqualFold(p.Mode, "and") {
		q.Mode = contentindex.ModeAND
	}

	res, err := s.engine.Content().Search(q)
	if err != nil {
		return createErrorResponse("search_grep", err)
	}

	resp := &grepResponse{
		MatchedTokens: res.MatchedTokens,
		Summary: grepSummary{
			TotalFiles:   res.TotalMatches,
			TotalMatches: res.TotalMatches,
		},
	}
	for _, f := range res.Files {
		jf := grepFileJSON{
			Path:        f.Path,
			Score:       f.Score,
			Occurrences: f.Occurrences,
			Lines:       f.Lines,
		}
		for _, blk := range f.LineContent {
			jf.LineContent = append(jf.LineContent, lineBlockJSON{StartLine: blk.StartLine, EndLine: blk.EndLine, Text: blk.Text})
		}
		resp.Files = append(resp.Files, jf)
	}
	return createGrepResponse(resp)
}

// responseByteLimit caps the rendered size of a single tool response.
// Summary.TotalFiles is set before truncation so the caller always sees
// the pre-truncation count.
const responseByteLimit = 64 * 1024

// createGrepResponse renders resp, halving the file list until the
// rendered JSON fits under responseByteLimit. Auto-truncation is applied
// after rendering, and when triggered the emitted JSON carries
// responseTruncated:true.
func createGrepResponse(resp *grepResponse) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	for len(payload) > responseByteLimit && len(resp.Files) > 1 {
		resp.Files = resp.Files[:len(resp.Files)/2]
		resp.ResponseTruncated = true
		payload, err = json.Marshal(resp)
		if err != nil {
			return nil, err
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, nil
}

type fastParams struct {
	Pattern    string `json:"pattern"`
	Dir        string `json:"dir"`
	Ext        string `json:"ext"`
	Regex      bool   `json:"regex"`
	IgnoreCase bool   `json:"ignoreCase"`
	DirsOnly   bool   `json:"dirsOnly"`
	FilesOnly  bool   `json:"filesOnly"`
	CountOnly  bool   `json:"countOnly"`
}

func (s *Server) handleFast(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p fastParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_fast", errs.InvalidArgs(err.Error()))
	}

	results, summary, err := s.engine.Files().Search(fileindex.Query{
		Pattern:    p.Pattern,
		Dir:        p.Dir,
		Ext:        p.Ext,
		Regex:      p.Regex,
		IgnoreCase: p.IgnoreCase,
		DirsOnly:   p.DirsOnly,
		FilesOnly:  p.FilesOnly,
		CountOnly:  p.CountOnly,
	})
	if err != nil {
		return createErrorResponse("search_fast", err)
	}
	return createJSONResponse(map[string]any{
		"results": results,
		"summary": summary,
	})
}

type findParams struct {
	Pattern    string `json:"pattern"`
	Dir        string `json:"dir"`
	Ext        string `json:"ext"`
	Contents   string `json:"contents"`
	Regex      bool   `json:"regex"`
	IgnoreCase bool   `json:"ignoreCase"`
	MaxDepth   int    `json:"maxDepth"`
	CountOnly  bool   `json:"countOnly"`
}

type findMatch struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

type findHit struct {
	Path    string      `json:"path"`
	Matches []findMatch `json:"matches,omitempty"`
}

// handleFind combines a file-name search with an optional per-file
// content grep.
func (s *Server) handleFind(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_find", errs.InvalidArgs(err.Error()))
	}
	if strings.TrimSpace(p.Pattern) == "" {
		return createErrorResponse("search_find", errs.InvalidArgs("missing required parameter: pattern"))
	}

	fast, _, err := s.engine.Files().Search(fileindex.Query{
		Pattern:    p.Pattern,
		Dir:        p.Dir,
		Ext:        p.Ext,
		Regex:      p.Regex,
		IgnoreCase: p.IgnoreCase,
		FilesOnly:  true,
	})
	if err != nil {
		return createErrorResponse("search_find", err)
	}

	// One content query up front rather than one per matched file; the
	// per-path match lists are then joined against the name hits below.
	contentMatches := map[string][]findMatch{}
	if p.Contents != "" {
		res, cerr := s.engine.Content().Search(contentindex.Query{
			Terms:     []string{p.Contents},
			Dir:       p.Dir,
			Ext:       p.Ext,
			ShowLines: true,
		})
		if cerr != nil {
			return createErrorResponse("search_find", cerr)
		}
		for _, fr := range res.Files {
			for _, blk := range fr.LineContent {
				for i, line := range blk.Text {
					contentMatches[fr.Path] = append(contentMatches[fr.Path], findMatch{Line: blk.StartLine + i, Text: line})
				}
			}
		}
	}

	var hits []findHit
	matchCount := 0
	for _, f := range fast {
		if p.MaxDepth > 0 && pathDepth(f.Path, p.Dir) > p.MaxDepth {
			continue
		}
		hit := findHit{Path: f.Path}
		if p.Contents != "" {
			hit.Matches = contentMatches[f.Path]
			if len(hit.Matches) == 0 {
				continue
			}
		}
		matchCount++
		if !p.CountOnly {
			hits = append(hits, hit)
		}
	}

	if p.CountOnly {
		return createJSONResponse(map[string]any{"totalMatches": matchCount})
	}
	return createJSONResponse(map[string]any{"results": hits, "totalMatches": matchCount})
}

// pathDepth counts path segments below dir (the whole root when dir is
// empty): "a/b/c.cs" is depth 3 from the root, depth 2 from "a".
func pathDepth(path, dir string) int {
	if dir != "" {
		dir = strings.TrimSuffix(dir, "/") + "/"
		path = strings.TrimPrefix(path, dir)
	}
	return strings.Count(path, "/") + 1
}

type definitionsParams struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	Attribute         string `json:"attribute"`
	BaseType          string `json:"baseType"`
	Parent            string `json:"parent"`
	File              string `json:"file"`
	ContainsLine      int    `json:"containsLine"`
	IncludeBody       bool   `json:"includeBody"`
	MaxBodyLines      int    `json:"maxBodyLines"`
	MaxTotalBodyLines int    `json:"maxTotalBodyLines"`
	IncludeCodeStats  bool   `json:"includeCodeStats"`
	SortBy            string `json:"sortBy"`
	MinLines          int    `json:"minLines"`
	MinParams         int    `json:"minParams"`
	MinCalls          int    `json:"minCalls"`
	Regex             bool   `json:"regex"`
	MaxResults        int    `json:"maxResults"`
}

type codeStatsJSON struct {
	CyclomaticComplexity uint16 `json:"cyclomaticComplexity"`
	CognitiveComplexity  uint16 `json:"cognitiveComplexity"`
	MaxNestingDepth      uint8  `json:"maxNestingDepth"`
	ParamCount           uint8  `json:"paramCount"`
	ReturnCount          uint16 `json:"returnCount"`
	CallCount            uint16 `json:"callCount"`
	LambdaCount          uint16 `json:"lambdaCount"`
}

type definitionJSON struct {
	ID            uint32                  `json:"id"`
	Name          string                  `json:"name"`
	Kind          defindex.DefinitionKind `json:"kind"`
	File          string                  `json:"file"`
	LineStart     int                     `json:"lineStart"`
	LineEnd       int                     `json:"lineEnd"`
	Parent        string                  `json:"parent,omitempty"`
	Signature     string                  `json:"signature,omitempty"`
	Modifiers     []string                `json:"modifiers,omitempty"`
	Attributes    []string                `json:"attributes,omitempty"`
	BaseTypes     []string                `json:"baseTypes,omitempty"`
	Body          []string                `json:"body,omitempty"`
	BodyTruncated bool                    `json:"bodyTruncated,omitempty"`
	CodeStats     *codeStatsJSON          `json:"codeStats,omitempty"`
}

const (
	defaultMaxBodyLines      = 25
	defaultMaxTotalBodyLines = 500
)

func (s *Server) handleDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p definitionsParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_definitions", errs.InvalidArgs(err.Error()))
	}

	var names []string
	if p.Name != "" {
		names = splitComma(p.Name)
	}

	idx := s.engine.Defs()
	defs, ids, err := idx.Lookup(defindex.LookupQuery{
		Names:        names,
		Kind:         p.Kind,
		Attribute:    p.Attribute,
		BaseType:     p.BaseType,
		Parent:       p.Parent,
		File:         p.File,
		ContainsLine: p.ContainsLine,
		Regex:        p.Regex,
	})
	if err != nil {
		return createErrorResponse("search_definitions", err)
	}

	idx.RLock()
	out := make([]definitionJSON, 0, len(defs))
	for i, d := range defs {
		if p.MinLines > 0 && d.LineEnd-d.LineStart+1 < p.MinLines {
			continue
		}
		stats, hasStats := idx.CodeStats[ids[i]]
		if p.MinParams > 0 && (!hasStats || int(stats.ParamCount) < p.MinParams) {
			continue
		}
		if p.MinCalls > 0 && (!hasStats || int(stats.CallCount) < p.MinCalls) {
			continue
		}
		file := ""
		if int(d.FileID) < len(idx.Files) {
			file = idx.Files[d.FileID]
		}
		dj := definitionJSON{
			ID:         ids[i],
			Name:       d.Name,
			Kind:       d.Kind,
			File:       file,
			LineStart:  d.LineStart,
			LineEnd:    d.LineEnd,
			Parent:     d.Parent,
			Signature:  d.Signature,
			Modifiers:  d.Modifiers,
			Attributes: d.Attributes,
			BaseTypes:  d.BaseTypes,
		}
		if p.IncludeCodeStats && hasStats {
			dj.CodeStats = &codeStatsJSON{
				CyclomaticComplexity: stats.CyclomaticComplexity,
				CognitiveComplexity:  stats.CognitiveComplexity,
				MaxNestingDepth:      stats.MaxNestingDepth,
				ParamCount:           stats.ParamCount,
				ReturnCount:          stats.ReturnCount,
				CallCount:            stats.CallCount,
				LambdaCount:          stats.LambdaCount,
			}
		}
		out = append(out, dj)
	}
	root := idx.Root
	idx.RUnlock()

	switch strings.ToLower(p.SortBy) {
	case "name":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	case "file":
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].File != out[j].File {
				return out[i].File < out[j].File
			}
			return out[i].LineStart < out[j].LineStart
		})
	case "lines":
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].LineEnd-out[i].LineStart > out[j].LineEnd-out[j].LineStart
		})
	}

	totalMatches := len(out)
	if max := defaultInt(p.MaxResults, 100); len(out) > max {
		out = out[:max]
	}

	if p.IncludeBody {
		attachBodies(out, root, defaultInt(p.MaxBodyLines, defaultMaxBodyLines), defaultInt(p.MaxTotalBodyLines, defaultMaxTotalBodyLines))
	}

	return createJSONResponse(map[string]any{"results": out, "totalMatches": totalMatches})
}

// attachBodies reads each definition's source span into its Body field,
// capped per definition and across the whole response. Files are read at
// most once; a read failure simply leaves that definition body-less
// (per-file read errors degrade the result, never fail it).
func attachBodies(defs []definitionJSON, root string, maxBodyLines, maxTotalBodyLines int) {
	fileCache := map[string][]string{}
	totalBodyLines := 0
	for i := range defs {
		if totalBodyLines >= maxTotalBodyLines {
			defs[i].BodyTruncated = true
			continue
		}
		lines, ok := fileCache[defs[i].File]
		if !ok {
			content, err := os.ReadFile(filepath.Join(root, defs[i].File))
			if err != nil {
				fileCache[defs[i].File] = nil
				continue
			}
			lines = strings.Split(string(content), "\n")
			fileCache[defs[i].File] = lines
		}
		if lines == nil {
			continue
		}
		start, end := defs[i].LineStart, defs[i].LineEnd
		if start < 1 || start > len(lines) {
			continue
		}
		if end > len(lines) {
			end = len(lines)
		}
		body := lines[start-1 : end]
		if len(body) > maxBodyLines {
			body = body[:maxBodyLines]
			defs[i].BodyTruncated = true
		}
		if totalBodyLines+len(body) > maxTotalBodyLines {
			body = body[:maxTotalBodyLines-totalBodyLines]
			defs[i].BodyTruncated = true
		}
		defs[i].Body = body
		totalBodyLines += len(body)
	}
}

type callersParams struct {
	Method            string `json:"method"`
	Class             string `json:"class"`
	Direction         string `json:"direction"`
	Depth             int    `json:"depth"`
	ResolveInterfaces bool   `json:"resolveInterfaces"`
}

func (s *Server) handleCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p callersParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_callers", errs.InvalidArgs(err.Error()))
	}
	if strings.TrimSpace(p.Method) == "" {
		return createErrorResponse("search_callers", errs.InvalidArgs("missing required parameter: method"))
	}

	dir := callgraph.DirectionUp
	if strings.EqualFold(p.Direction, "down") {
		dir = callgraph.DirectionDown
	}

	nodes := callgraph.Who(s.engine.Defs(), callgraph.Query{
		Method:            p.Method,
		Class:             p.Class,
		Direction:         dir,
		Depth:             p.Depth,
		ResolveInterfaces: p.ResolveInterfaces,
	})
	return createJSONResponse(map[string]any{"results": nodes, "totalMatches": len(nodes)})
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now()
	content := s.engine.Content()
	defs := s.engine.Defs()
	files := s.engine.Files()

	return createJSONResponse(map[string]any{
		"contentIndex": map[string]any{
			"root":        content.Root,
			"fileCount":   content.FileCount(),
			"totalTokens": content.TotalTokens,
			"stale":       content.IsStale(now),
		},
		"definitionIndex": map[string]any{
			"root":          defs.Root,
			"createdAt":     defs.CreatedAt,
			"ageSecs":       now.Sub(defs.CreatedAt).Seconds(),
			"defCount":      defs.ActiveCount(),
			"tombstoneWarn": defs.TombstoneRatioExceeds(2),
		},
		"fileIndex": map[string]any{
			"root":  files.Root,
			"stale": files.IsStale(now),
		},
	})
}

func (s *Server) handleReindex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Reindex(ctx)
	if err != nil {
		return createErrorResponse("search_reindex", err)
	}
	s.log.Infof("reindex complete: %d files, %d defs, %d tokens in %s",
		stats.FilesIndexed, stats.DefsIndexed, stats.TokensIndexed, stats.Elapsed)
	return createJSONResponse(map[string]any{
		"filesIndexed":  stats.FilesIndexed,
		"defsIndexed":   stats.DefsIndexed,
		"tokensIndexed": stats.TokensIndexed,
		"elapsedMs":     stats.Elapsed.Milliseconds(),
	})
}

var toolDescriptions = map[string]string{
	"search_grep":        "Token, substring, or phrase search across indexed file contents. terms=\"foo,bar\" is an OR search; add regex=true for regex-over-tokens, or phrase=true for a literal multi-word phrase.",
	"search_fast":        "Fast file-name search, ranked exact > prefix > contains. pattern=\"foo,bar\" is an OR search over file base names.",
	"search_find":        "Recursive file-name search, optionally grep'ing matched files' contents via the 'contents' parameter.",
	"search_definitions": "Look up classes/methods/functions/etc. by name, kind, attribute, base type, parent, or file/line; includeBody=true inlines source spans.",
	"search_callers":     "Call-graph traversal: direction=\"up\" for callers, \"down\" for callees.",
	"search_info":        "Report index health and staleness.",
	"search_reindex":     "Force a synchronous full rebuild of the content and definition indexes.",
	"search_help":        "This tool.",
}

var toolNames = func() []string {
	names := make([]string, 0, len(toolDescriptions))
	for n := range toolDescriptions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}()

type helpParams struct {
	Tool string `json:"tool"`
}

// handleHelp renders the tool reference and usage tips. An unrecognized
// tool name gets an edit-distance "did you mean" suggestion rather than
// a bare error.
func (s *Server) handleHelp(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p helpParams
	if err := decodeArgs(req.Params.Arguments, &p); err != nil {
		return createErrorResponse("search_help", errs.InvalidArgs(err.Error()))
	}

	if p.Tool == "" {
		return createJSONResponse(map[string]any{
			"tools": toolDescriptions,
			"tips": []string{
				"search_grep defaults to substring matching; use regex=true or phrase=true for other modes",
				"search_fast and search_find both accept comma-separated OR patterns",
				"search_callers direction=\"up\" finds callers, \"down\" finds callees",
				"countOnly=true on search_grep/search_fast/search_find returns aggregate counts only",
			},
		})
	}

	if desc, ok := toolDescriptions[p.Tool]; ok {
		return createJSONResponse(map[string]any{"tool": p.Tool, "description": desc})
	}

	suggestion, _ := closestToolName(p.Tool)
	return createJSONResponse(map[string]any{
		"tool":       p.Tool,
		"error":      "unknown tool",
		"suggestion": suggestion,
	})
}

func closestToolName(input string) (string, int) {
	best := ""
	bestDistance := 1 << 30
	for _, name := range toolNames {
		d := edlib.LevenshteinDistance(input, name)
		if d < bestDistance {
			bestDistance = d
			best = name
		}
	}
	return best, bestDistance
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
