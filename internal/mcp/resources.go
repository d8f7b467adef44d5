package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TuneURIPrefix is the scheme of tune resources.
const TuneURIPrefix = "tune://"

// MimeTypeABC is the media type of ABC notation.
const MimeTypeABC = "text/vnd.abc"

// registerResources exposes every tune's ABC body as tune://{id}.
func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "tune",
			URITemplate: TuneURIPrefix + "{id}",
			Description: "ABC notation of a tune",
			MIMEType:    MimeTypeABC,
		},
		s.handleReadTune,
	)
}

// handleReadTune returns the ABC body of the tune named by the request URI.
func (s *Server) handleReadTune(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := TuneIDFromURI(uri)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	tune, err := s.catalog.GetTune(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if tune == nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: MimeTypeABC,
				Text:     tune.ABC,
			},
		},
	}, nil
}

// TuneIDFromURI extracts the tune id from a tune:// URI.
func TuneIDFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, TuneURIPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(uri, TuneURIPrefix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
