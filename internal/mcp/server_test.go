package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/search"
)

// fakeCatalog is an in-memory Catalog.
type fakeCatalog struct {
	tunes      map[string]*catalog.Tune
	recordings map[string][]*catalog.Recording
	err        error

	lastQuery  string
	lastSearch search.SearchOptions
	lastList   search.ListOptions
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tunes: map[string]*catalog.Tune{
			"1": {ID: "1", Title: "The Kesh", Type: catalog.TypeJig, Meter: catalog.MeterSixEight, Mode: catalog.ModeGMajor,
				ABC: "X:1\nT:The Kesh\nK:G\n", Aliases: []string{"Kesh Jig"}},
			"2": {ID: "2", Title: "Drowsy Maggie", Type: catalog.TypeReel, Meter: catalog.MeterFourFour},
		},
		recordings: map[string][]*catalog.Recording{
			"2": {{ID: "r1", TuneID: "2", Artist: "Altan", Album: "Harvest Storm", Track: "Drowsy Maggie"}},
		},
	}
}

func (f *fakeCatalog) SearchTunes(_ context.Context, query string, opts search.SearchOptions) ([]*catalog.Tune, error) {
	f.lastQuery, f.lastSearch = query, opts
	if f.err != nil {
		return nil, f.err
	}
	var out []*catalog.Tune
	for _, id := range []string{"1", "2"} {
		if strings.Contains(strings.ToLower(f.tunes[id].Title), strings.ToLower(query)) {
			out = append(out, f.tunes[id])
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListTunes(_ context.Context, opts search.ListOptions) ([]*catalog.Tune, error) {
	f.lastList = opts
	if f.err != nil {
		return nil, f.err
	}
	return []*catalog.Tune{f.tunes["2"], f.tunes["1"]}, nil
}

func (f *fakeCatalog) GetTune(_ context.Context, id string) (*catalog.Tune, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tunes[id], nil
}

func (f *fakeCatalog) GetRecordings(_ context.Context, tuneID string) ([]*catalog.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recordings[tuneID], nil
}

func (f *fakeCatalog) Stats(context.Context) (*search.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &search.Stats{
		Counts:     map[catalog.Kind]int{catalog.KindTunes: 2, catalog.KindRecordings: 1},
		IndexBuilt: true,
		IndexSize:  2,
	}, nil
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

// decodeStructured re-decodes the structured content of res into out.
func decodeStructured(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestNewServer_RequiresCatalog(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)

	name, ver := srv.Info()
	assert.Equal(t, "tunebook", name)
	assert.NotEmpty(t, ver)
}

func TestServer_ListTools(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_tunes", "list_tunes", "get_tune", "get_recordings", "catalog_stats"}, names)
}

func TestServer_SearchTunes(t *testing.T) {
	// Given: a server over two tunes
	cat := newFakeCatalog()
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	// When: searching with a filter and no limit
	res := callTool(t, session, "search_tunes", map[string]any{"query": "kesh", "type": "Jig"})

	// Then: the catalog saw the parsed options and the result lists the hit
	require.False(t, res.IsError)
	assert.Equal(t, "kesh", cat.lastQuery)
	assert.Equal(t, catalog.TypeJig, cat.lastSearch.Type)
	assert.Equal(t, defaultToolLimit, cat.lastSearch.Limit)

	assert.Contains(t, resultText(t, res), "**The Kesh** (id `1`)")

	var out TunesOutput
	decodeStructured(t, res, &out)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "The Kesh", out.Tunes[0].Title)
	assert.Empty(t, out.Tunes[0].ABC)
}

func TestServer_SearchTunes_ClampsLimit(t *testing.T) {
	cat := newFakeCatalog()
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	callTool(t, session, "search_tunes", map[string]any{"query": "maggie", "limit": 10000})

	assert.Equal(t, maxToolLimit, cat.lastSearch.Limit)
}

func TestServer_SearchTunes_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"blank query", map[string]any{"query": "   "}, "query parameter is required"},
		{"bad type", map[string]any{"query": "kesh", "type": "bourree"}, "unknown tune type"},
		{"bad mode", map[string]any{"query": "kesh", "mode": "gmajor"}, "unknown mode"},
	}

	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, session, "search_tunes", tt.args)

			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestServer_SearchTunes_NotInitialized(t *testing.T) {
	cat := newFakeCatalog()
	cat.err = tberrors.ErrNotInitialized
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "search_tunes", map[string]any{"query": "kesh"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "-32001")
}

func TestServer_ListTunes(t *testing.T) {
	cat := newFakeCatalog()
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "list_tunes", map[string]any{
		"order_by": "popularity",
		"desc":     true,
		"offset":   5,
		"meter":    "4/4",
	})

	require.False(t, res.IsError)
	assert.Equal(t, search.ListOptions{
		Meter:   catalog.MeterFourFour,
		Offset:  5,
		Limit:   defaultToolLimit,
		OrderBy: "popularity",
		Desc:    true,
	}, cat.lastList)
	assert.Contains(t, resultText(t, res), "## Tunes for 4/4")

	var out TunesOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, 2, out.Count)
}

func TestServer_ListTunes_InvalidOrder(t *testing.T) {
	// Given: a catalog that rejects the order field
	cat := newFakeCatalog()
	cat.err = tberrors.New(tberrors.ErrCodeInvalidOrder, `unsupported order field "bpm"`, nil)
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	// When: listing with it
	res := callTool(t, session, "list_tunes", map[string]any{"order_by": "bpm"})

	// Then: the client sees an invalid params error
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "-32602")
	assert.Contains(t, resultText(t, res), "bpm")
}

func TestServer_GetTune(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "get_tune", map[string]any{"id": "2", "include_recordings": true})

	require.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "## Drowsy Maggie")
	assert.Contains(t, text, "| Altan | Harvest Storm | Drowsy Maggie |")

	var out GetTuneOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, "2", out.Tune.ID)
	require.Len(t, out.Recordings, 1)
}

func TestServer_GetTune_IncludesABC(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "get_tune", map[string]any{"id": "1"})

	var out GetTuneOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, "X:1\nT:The Kesh\nK:G\n", out.Tune.ABC)
	assert.Empty(t, out.Recordings)
}

func TestServer_GetTune_NotFound(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "get_tune", map[string]any{"id": "999"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Tune '999' not found.")
}

func TestServer_GetRecordings(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "get_recordings", map[string]any{"tune_id": "1"})

	require.False(t, res.IsError)
	assert.Equal(t, "No recordings of tune `1`", resultText(t, res))

	var out RecordingsOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, "1", out.TuneID)
	assert.Empty(t, out.Recordings)
}

func TestServer_CatalogStats(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "catalog_stats", map[string]any{})

	require.False(t, res.IsError)
	var out StatsOutput
	decodeStructured(t, res, &out)
	assert.Equal(t, StatsOutput{Tunes: 2, Recordings: 1, IndexBuilt: true, IndexSize: 2}, out)
}

func TestServer_TransportFailure(t *testing.T) {
	cat := newFakeCatalog()
	cat.err = errors.Join(tberrors.ErrTransport, errors.New("broken pipe"))
	srv, err := NewServer(cat)
	require.NoError(t, err)
	session := connect(t, srv)

	res := callTool(t, session, "catalog_stats", map[string]any{})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "-32002")
}

func TestServer_ServeUnknownTransport(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)

	err = srv.Serve(context.Background(), "sse")
	assert.ErrorContains(t, err, "unknown transport")
}
