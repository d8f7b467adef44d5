package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

const (
	// TitleTokenizerName is the registered name of the title tokenizer.
	TitleTokenizerName = "title_tokenizer"

	// TitleAnalyzerName is the registered name of the title analyzer.
	TitleAnalyzerName = "title_analyzer"
)

// Indexed fields and their query boosts.
var fuzzyFields = []struct {
	name  string
	boost float64
}{
	{"title", 2.0},
	{"aliases", 1.5},
	{"searchText", 1.0},
	{"abc", 0.5},
}

// joinedField holds title and alias words run together, so a query that
// drops a separator ("silverspear") still finds the tune.
const joinedField = "joined"

const joinedBoost = 1.5

func init() {
	_ = registry.RegisterTokenizer(TitleTokenizerName, titleTokenizerConstructor)
}

// tuneDoc is the document shape handed to Bleve.
type tuneDoc struct {
	Title      string `json:"title"`
	Aliases    string `json:"aliases"`
	ABC        string `json:"abc"`
	SearchText string `json:"searchText"`
	Joined     string `json:"joined"`
}

// BleveFuzzyIndex implements FuzzyIndex on an in-memory Bleve index.
type BleveFuzzyIndex struct {
	mu     sync.RWMutex
	config FuzzyConfig
	index  bleve.Index
	tunes  map[string]*catalog.Tune
}

// Verify interface implementation at compile time
var _ FuzzyIndex = (*BleveFuzzyIndex)(nil)

// NewBleveFuzzyIndex returns an empty, unbuilt index.
func NewBleveFuzzyIndex(config FuzzyConfig) *BleveFuzzyIndex {
	def := DefaultFuzzyConfig()
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if config.MinTokenLength <= 0 {
		config.MinTokenLength = def.MinTokenLength
	}
	if config.MaxEdits <= 0 || config.MaxEdits > 2 {
		config.MaxEdits = def.MaxEdits
	}
	return &BleveFuzzyIndex{config: config}
}

func createFuzzyMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TitleAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     TitleTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = TitleAnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, f := range fuzzyFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = TitleAnalyzerName
		fm.Store = false
		fm.IncludeTermVectors = false
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f.name, fm)
	}
	jm := bleve.NewTextFieldMapping()
	jm.Analyzer = TitleAnalyzerName
	jm.Store = false
	jm.IncludeTermVectors = false
	jm.IncludeInAll = false
	doc.AddFieldMappingsAt(joinedField, jm)
	indexMapping.DefaultMapping = doc

	return indexMapping, nil
}

// Build indexes tunes into a fresh index and swaps it in, closing the
// previous one.
func (b *BleveFuzzyIndex) Build(ctx context.Context, tunes []*catalog.Tune) error {
	indexMapping, err := createFuzzyMapping()
	if err != nil {
		return tberrors.New(tberrors.ErrCodeIndexFailed, "failed to create index mapping", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return tberrors.New(tberrors.ErrCodeIndexFailed, "failed to create index", err)
	}

	snapshot := make(map[string]*catalog.Tune, len(tunes))
	batch := idx.NewBatch()
	for _, t := range tunes {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return err
		}
		doc := tuneDoc{
			Title:      t.Title,
			Aliases:    strings.Join(t.Aliases, " "),
			ABC:        t.ABC,
			SearchText: t.SearchText,
			Joined:     joinedTerms(append([]string{t.Title}, t.Aliases...)),
		}
		if err := batch.Index(t.ID, doc); err != nil {
			_ = idx.Close()
			return tberrors.New(tberrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to index tune %s", t.ID), err)
		}
		snapshot[t.ID] = t
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return tberrors.New(tberrors.ErrCodeIndexFailed, "failed to execute batch", err)
	}

	b.mu.Lock()
	old := b.index
	b.index = idx
	b.tunes = snapshot
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	slog.Debug("fuzzy_index_built", slog.Int("tunes", len(snapshot)))
	return nil
}

// Invalidate drops the index. The next Built call reports false.
func (b *BleveFuzzyIndex) Invalidate() {
	b.mu.Lock()
	old := b.index
	b.index = nil
	b.tunes = nil
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Built reports whether an index is present.
func (b *BleveFuzzyIndex) Built() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index != nil
}

// Size returns the number of indexed tunes.
func (b *BleveFuzzyIndex) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tunes)
}

// Query ranks tunes against text. A tune matches when every query token
// approximately matches some field, or when the query with its separators
// removed approximately matches adjacent title or alias words run
// together. A token matches a term within its edit budget or as a prefix
// of it. Results are ordered by score, then id.
func (b *BleveFuzzyIndex) Query(ctx context.Context, text string, limit int) ([]FuzzyHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.index == nil {
		return nil, tberrors.New(tberrors.ErrCodeSearchFailed, "fuzzy index not built", nil)
	}

	tokens := Terms(text, b.config.MinTokenLength)
	if len(tokens) == 0 {
		return []FuzzyHit{}, nil
	}

	if limit <= 0 {
		limit = len(b.tunes)
	}
	if limit == 0 {
		return []FuzzyHit{}, nil
	}

	conjuncts := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		conjuncts = append(conjuncts, b.tokenQuery(tok))
	}

	var q query.Query = bleve.NewConjunctionQuery(conjuncts...)
	if compact := compactQuery(text); compact != "" {
		jq := bleve.NewFuzzyQuery(compact)
		jq.SetField(joinedField)
		jq.SetFuzziness(b.editBudget(compact))
		jq.SetBoost(joinedBoost)
		q = bleve.NewDisjunctionQuery(q, jq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, tberrors.New(tberrors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]FuzzyHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		t, ok := b.tunes[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, FuzzyHit{Tune: t, Score: hit.Score})
	}
	return hits, nil
}

// tokenQuery matches tok in any field, fuzzily or as a prefix.
func (b *BleveFuzzyIndex) tokenQuery(tok string) query.Query {
	edits := b.editBudget(tok)
	disjuncts := make([]query.Query, 0, 2*len(fuzzyFields))
	for _, f := range fuzzyFields {
		fq := bleve.NewFuzzyQuery(tok)
		fq.SetField(f.name)
		fq.SetFuzziness(edits)
		fq.SetBoost(f.boost)
		disjuncts = append(disjuncts, fq)

		pq := bleve.NewPrefixQuery(tok)
		pq.SetField(f.name)
		pq.SetBoost(f.boost * 0.5)
		disjuncts = append(disjuncts, pq)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func (b *BleveFuzzyIndex) editBudget(tok string) int {
	n := len([]rune(tok))
	edits := int(math.Round(b.config.Threshold * float64(n)))
	if edits > b.config.MaxEdits {
		edits = b.config.MaxEdits
	}
	return edits
}

// joinedTerms returns, for each text, its adjacent word pairs and all its
// words run together, space separated.
func joinedTerms(texts []string) string {
	var out []string
	for _, text := range texts {
		spans := TokenizeTitle(text)
		if len(spans) < 2 {
			continue
		}
		var all strings.Builder
		for i, sp := range spans {
			all.WriteString(sp.Term)
			if i+1 < len(spans) {
				out = append(out, sp.Term+spans[i+1].Term)
			}
		}
		if len(spans) > 2 {
			out = append(out, all.String())
		}
	}
	return strings.Join(out, " ")
}

// compactQuery folds text and drops its separators. Queries shorter than
// a two-word title cannot match a joined term and yield "".
func compactQuery(text string) string {
	var b strings.Builder
	for _, sp := range TokenizeTitle(text) {
		b.WriteString(sp.Term)
	}
	if len([]rune(b.String())) < 4 {
		return ""
	}
	return b.String()
}

// Close releases the index.
func (b *BleveFuzzyIndex) Close() error {
	b.Invalidate()
	return nil
}

func titleTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTitleTokenizer{}, nil
}

// bleveTitleTokenizer adapts TokenizeTitle to analysis.Tokenizer.
type bleveTitleTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTitleTokenizer) Tokenize(input []byte) analysis.TokenStream {
	spans := TokenizeTitle(string(input))
	stream := make(analysis.TokenStream, 0, len(spans))
	for i, sp := range spans {
		stream = append(stream, &analysis.Token{
			Term:     []byte(sp.Term),
			Start:    sp.Start,
			End:      sp.End,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}
