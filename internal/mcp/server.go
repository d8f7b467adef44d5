package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tunebook/tunebook/internal/catalog"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/internal/search"
	"github.com/tunebook/tunebook/pkg/version"
)

// Catalog is the read side of the engine the server exposes. Both the
// daemon client and the in-process client satisfy it.
type Catalog interface {
	SearchTunes(ctx context.Context, query string, opts search.SearchOptions) ([]*catalog.Tune, error)
	ListTunes(ctx context.Context, opts search.ListOptions) ([]*catalog.Tune, error)
	GetTune(ctx context.Context, id string) (*catalog.Tune, error)
	GetRecordings(ctx context.Context, tuneID string) ([]*catalog.Recording, error)
	Stats(ctx context.Context) (*search.Stats, error)
}

// Server is the MCP server for tunebook.
// It lets AI clients look up tunes in the catalog.
type Server struct {
	mcp     *mcp.Server
	catalog Catalog
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records tool calls in m.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new MCP server backed by cat.
func NewServer(cat Catalog, opts ...ServerOption) (*Server, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}

	s := &Server{
		catalog: cat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "tunebook",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools/resources
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "tunebook", version.Version
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_tunes",
		Description: "Find tunes by title or alternative title. Tolerates misspellings and partial titles, and can filter by tune type, mode and meter. Returns the best matches first.",
	}, s.mcpSearchTunesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tunes",
		Description: "Page through the catalog in a stable order, optionally filtered by tune type, mode and meter. Sort by title, popularity, createdAt, updatedAt or type.",
	}, s.mcpListTunesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_tune",
		Description: "Fetch one tune by id, including its ABC notation and optionally its recordings.",
	}, s.mcpGetTuneHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_recordings",
		Description: "List the released recordings of a tune: artist, album and track.",
	}, s.mcpGetRecordingsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "catalog_stats",
		Description: "Report how many tunes, aliases, popularity entries, recordings and sets the catalog holds, and whether the fuzzy index is ready.",
	}, s.mcpStatsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

// begin logs the start of a tool call and returns the function that logs and
// records its end.
func (s *Server) begin(tool string, attrs ...any) func(err error) {
	requestID := generateRequestID()
	start := time.Now()
	s.logger.Debug("tool call", append([]any{
		slog.String("request_id", requestID),
		slog.String("tool", tool),
	}, attrs...)...)

	return func(err error) {
		d := time.Since(start)
		s.metrics.ObserveRequest("mcp."+tool, err == nil, d)
		if err != nil {
			s.logger.Warn("tool call failed",
				slog.String("request_id", requestID),
				slog.String("tool", tool),
				slog.String("error", err.Error()),
				slog.Duration("duration", d))
			return
		}
		s.logger.Debug("tool call done",
			slog.String("request_id", requestID),
			slog.String("tool", tool),
			slog.Duration("duration", d))
	}
}

func (s *Server) mcpSearchTunesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchTunesInput) (
	result *mcp.CallToolResult,
	output TunesOutput,
	err error,
) {
	done := s.begin("search_tunes", slog.String("query", input.Query))
	defer func() { done(err) }()

	if strings.TrimSpace(input.Query) == "" {
		return nil, TunesOutput{}, NewInvalidParamsError("query parameter is required")
	}
	filter, err := parseFilter(input.Type, input.Mode, input.Meter)
	if err != nil {
		return nil, TunesOutput{}, err
	}

	tunes, err := s.catalog.SearchTunes(ctx, input.Query, search.SearchOptions{
		Limit: clampLimit(input.Limit, defaultToolLimit, 1, maxToolLimit),
		Type:  filter.Type,
		Mode:  filter.Mode,
		Meter: filter.Meter,
	})
	if err != nil {
		return nil, TunesOutput{}, MapError(err)
	}

	output = toTunesOutput(tunes)
	return textResult(FormatTunes(fmt.Sprintf("%q", input.Query), output)), output, nil
}

func (s *Server) mcpListTunesHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListTunesInput) (
	result *mcp.CallToolResult,
	output TunesOutput,
	err error,
) {
	done := s.begin("list_tunes", slog.String("order_by", input.OrderBy), slog.Int("offset", input.Offset))
	defer func() { done(err) }()

	filter, err := parseFilter(input.Type, input.Mode, input.Meter)
	if err != nil {
		return nil, TunesOutput{}, err
	}
	if input.Offset < 0 {
		return nil, TunesOutput{}, NewInvalidParamsError("offset must not be negative")
	}

	tunes, err := s.catalog.ListTunes(ctx, search.ListOptions{
		Type:    filter.Type,
		Mode:    filter.Mode,
		Meter:   filter.Meter,
		Offset:  input.Offset,
		Limit:   clampLimit(input.Limit, defaultToolLimit, 1, maxToolLimit),
		OrderBy: input.OrderBy,
		Desc:    input.Desc,
	})
	if err != nil {
		return nil, TunesOutput{}, MapError(err)
	}

	output = toTunesOutput(tunes)
	return textResult(FormatTunes(describeListing(input), output)), output, nil
}

func (s *Server) mcpGetTuneHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetTuneInput) (
	result *mcp.CallToolResult,
	output GetTuneOutput,
	err error,
) {
	done := s.begin("get_tune", slog.String("id", input.ID))
	defer func() { done(err) }()

	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, GetTuneOutput{}, NewInvalidParamsError("id parameter is required")
	}

	tune, err := s.catalog.GetTune(ctx, id)
	if err != nil {
		return nil, GetTuneOutput{}, MapError(err)
	}
	if tune == nil {
		return nil, GetTuneOutput{}, NewTuneNotFoundError(id)
	}

	output = GetTuneOutput{Tune: ToTuneOutput(tune, true)}
	if input.IncludeRecordings {
		recs, err := s.catalog.GetRecordings(ctx, id)
		if err != nil {
			return nil, GetTuneOutput{}, MapError(err)
		}
		output.Recordings = ToRecordingOutputs(recs)
	}
	return textResult(FormatTune(output)), output, nil
}

func (s *Server) mcpGetRecordingsHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordingsInput) (
	result *mcp.CallToolResult,
	output RecordingsOutput,
	err error,
) {
	done := s.begin("get_recordings", slog.String("tune_id", input.TuneID))
	defer func() { done(err) }()

	id := strings.TrimSpace(input.TuneID)
	if id == "" {
		return nil, RecordingsOutput{}, NewInvalidParamsError("tune_id parameter is required")
	}

	recs, err := s.catalog.GetRecordings(ctx, id)
	if err != nil {
		return nil, RecordingsOutput{}, MapError(err)
	}

	output = RecordingsOutput{TuneID: id, Recordings: ToRecordingOutputs(recs)}
	return textResult(FormatRecordings(output)), output, nil
}

func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	result *mcp.CallToolResult,
	output StatsOutput,
	err error,
) {
	done := s.begin("catalog_stats")
	defer func() { done(err) }()

	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}

	output = StatsOutput{
		Tunes:      stats.Counts[catalog.KindTunes],
		Aliases:    stats.Counts[catalog.KindAliases],
		Popularity: stats.Counts[catalog.KindPopularity],
		Recordings: stats.Counts[catalog.KindRecordings],
		Sets:       stats.Counts[catalog.KindSets],
		IndexBuilt: stats.IndexBuilt,
		IndexSize:  stats.IndexSize,
	}
	if q := stats.Searches; q != nil {
		output.Searches = q.Searches
		output.ZeroResults = q.ZeroResults
		for _, tc := range q.TopTerms {
			output.TopTerms = append(output.TopTerms, tc.Term)
		}
	}
	return textResult(FormatStats(output)), output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func describeListing(in ListTunesInput) string {
	var parts []string
	for _, p := range []string{in.Type, in.Mode, in.Meter} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "the catalog"
	}
	return strings.Join(parts, ", ")
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
