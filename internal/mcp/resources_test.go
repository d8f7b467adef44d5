package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuneIDFromURI(t *testing.T) {
	tests := []struct {
		uri    string
		wantID string
		wantOK bool
	}{
		{"tune://42", "42", true},
		{"tune:// 42 ", "42", true},
		{"tune://", "", false},
		{"tune://a/b", "", false},
		{"file:///etc/passwd", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			id, ok := TuneIDFromURI(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestServer_ReadTuneResource(t *testing.T) {
	// Given: a connected client
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	// When: reading a tune resource
	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "tune://1"})

	// Then: the ABC body comes back with its media type
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "tune://1", res.Contents[0].URI)
	assert.Equal(t, MimeTypeABC, res.Contents[0].MIMEType)
	assert.Equal(t, "X:1\nT:The Kesh\nK:G\n", res.Contents[0].Text)
}

func TestServer_ReadTuneResource_NotFound(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	_, err = session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "tune://999"})

	assert.Error(t, err)
}

func TestServer_ListResourceTemplates(t *testing.T) {
	srv, err := NewServer(newFakeCatalog())
	require.NoError(t, err)
	session := connect(t, srv)

	res, err := session.ListResourceTemplates(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, res.ResourceTemplates, 1)
	assert.Equal(t, "tune://{id}", res.ResourceTemplates[0].URITemplate)
}
