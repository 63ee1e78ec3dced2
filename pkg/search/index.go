// Package search maintains the full-text index over relayed Telegram
// messages and serves the /search command.
package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	bsearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
)

const (
	queueSize   = 1024
	commitDocs  = 100
	commitEvery = 30 * time.Second

	// SnippetMaxRunes caps how much of a message a search hit quotes.
	SnippetMaxRunes = 50
)

// Document is one indexed Telegram message. ReplyTo carries the forum topic
// id (0 outside topics) so topic-scoped searches stay inside their topic.
type Document struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	ReplyTo   int64  `json:"reply_to"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
}

func (d Document) id() string {
	return fmt.Sprintf("%d:%d", d.ChatID, d.MessageID)
}

// Query selects messages of one Telegram chat, optionally narrowed to a
// forum topic, a keyword, and ids older than the previous result page.
type Query struct {
	ChatID   int64
	ReplyTo  int64 // topic id; 0 searches the whole chat
	Keyword  string
	LastID   int64 // only hits with message_id < LastID; 0 disables
	PageSize int
}

// Hit is one search result, newest first.
type Hit struct {
	MessageID int64
	Timestamp time.Time
	Snippet   string // HTML with matches wrapped in <b>
}

// Index owns a bleve index plus the single writer task that batches adds.
type Index struct {
	log   zerolog.Logger
	index bleve.Index

	docs    chan Document
	commits chan chan struct{}
}

func buildMapping() mapping.IndexMapping {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = cjk.AnalyzerName

	stored := bleve.NewNumericFieldMapping()
	unstored := bleve.NewNumericFieldMapping()
	unstored.Store = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("chat_id", unstored)
	doc.AddFieldMappingsAt("message_id", stored)
	doc.AddFieldMappingsAt("reply_to", unstored)
	doc.AddFieldMappingsAt("timestamp", stored)
	doc.AddFieldMappingsAt("content", content)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Open opens the index at path, creating it on first run.
func Open(log zerolog.Logger, path string) (*Index, error) {
	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	return &Index{
		log:     log,
		index:   index,
		docs:    make(chan Document, queueSize),
		commits: make(chan chan struct{}, queueSize),
	}, nil
}

// Run is the writer task. It owns the batch and commits once enough
// documents accumulate or enough time passes, whichever comes first.
// Explicit flushes and cancellation drain everything queued so far,
// commit it, and only then proceed.
func (i *Index) Run(ctx context.Context) error {
	batch := i.index.NewBatch()
	added := 0
	lastCommit := time.Now()

	index := func(doc Document) {
		if err := batch.Index(doc.id(), doc); err != nil {
			i.log.Err(err).Msg("Failed to add document to index")
		} else {
			added++
		}
	}
	commit := func() {
		for {
			select {
			case doc := <-i.docs:
				index(doc)
				continue
			default:
			}
			break
		}
		if batch.Size() > 0 {
			if err := i.index.Batch(batch); err != nil {
				i.log.Warn().Err(err).Msg("Failed to commit index batch")
			}
			batch.Reset()
		}
		added = 0
		lastCommit = time.Now()
	}

	for {
		select {
		case doc := <-i.docs:
			index(doc)
			if added >= commitDocs || time.Since(lastCommit) >= commitEvery {
				commit()
			}
		case ack := <-i.commits:
			commit()
			close(ack)
		case <-ctx.Done():
			commit()
			return ctx.Err()
		}
	}
}

// Add queues one document for the writer task.
func (i *Index) Add(ctx context.Context, doc Document) error {
	select {
	case i.docs <- doc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush forces a commit and waits for the writer to acknowledge it.
func (i *Index) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case i.commits <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Index) Close() error {
	return i.index.Close()
}

// Search returns one page of hits ordered by message id descending.
func (i *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	chatID := bleve.NewNumericRangeInclusiveQuery(
		ptr.Ptr(float64(q.ChatID)), ptr.Ptr(float64(q.ChatID)), ptr.Ptr(true), ptr.Ptr(true))
	chatID.SetField("chat_id")
	filters := []query.Query{chatID}

	if q.ReplyTo != 0 {
		replyTo := bleve.NewNumericRangeInclusiveQuery(
			ptr.Ptr(float64(q.ReplyTo)), ptr.Ptr(float64(q.ReplyTo)), ptr.Ptr(true), ptr.Ptr(true))
		replyTo.SetField("reply_to")
		filters = append(filters, replyTo)
	}
	if q.LastID != 0 {
		// Upper bound is exclusive, so the page after last_id starts below it.
		lastID := bleve.NewNumericRangeQuery(nil, ptr.Ptr(float64(q.LastID)))
		lastID.SetField("message_id")
		filters = append(filters, lastID)
	}
	if q.Keyword != "" {
		keyword := bleve.NewMatchQuery(q.Keyword)
		keyword.SetField("content")
		filters = append(filters, keyword)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(filters...), q.PageSize, 0, false)
	req.SortBy([]string{"-message_id"})
	req.Fields = []string{"message_id", "timestamp", "content"}
	req.IncludeLocations = true

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		messageID, _ := hit.Fields["message_id"].(float64)
		timestamp, _ := hit.Fields["timestamp"].(float64)
		content, _ := hit.Fields["content"].(string)
		hits = append(hits, Hit{
			MessageID: int64(messageID),
			Timestamp: time.Unix(int64(timestamp), 0),
			Snippet:   buildSnippet(content, hit.Locations["content"]),
		})
	}
	return hits, nil
}

type span struct {
	start, end int
}

// buildSnippet quotes at most SnippetMaxRunes runes of the content as HTML,
// wrapping matched terms in <b>. The window starts at the beginning unless
// the first match wouldn't fit, in which case it starts at the match.
func buildSnippet(content string, locations bsearch.TermLocationMap) string {
	var spans []span
	for _, locs := range locations {
		for _, loc := range locs {
			spans = append(spans, span{start: int(loc.Start), end: int(loc.End)})
		}
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	merged := make([]span, 0, len(spans))
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start <= merged[n-1].end {
			if s.end > merged[n-1].end {
				merged[n-1].end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	start := 0
	if len(merged) > 0 && utf8.RuneCountInString(content[:merged[0].end]) > SnippetMaxRunes {
		start = merged[0].start
	}
	end := byteOffsetAfterRunes(content, start, SnippetMaxRunes)

	var out []byte
	pos := start
	for _, s := range merged {
		if s.end <= pos || s.start >= end {
			continue
		}
		if s.start < pos {
			s.start = pos
		}
		if s.end > end {
			s.end = end
		}
		out = append(out, html.EscapeString(content[pos:s.start])...)
		out = append(out, "<b>"...)
		out = append(out, html.EscapeString(content[s.start:s.end])...)
		out = append(out, "</b>"...)
		pos = s.end
	}
	out = append(out, html.EscapeString(content[pos:end])...)
	return string(out)
}

// byteOffsetAfterRunes returns the byte offset n runes past start.
func byteOffsetAfterRunes(s string, start, n int) int {
	seen := 0
	for i := range s[start:] {
		if seen == n {
			return start + i
		}
		seen++
	}
	return len(s)
}
