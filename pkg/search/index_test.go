package search_test

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/search"
)

func newTestIndex(t *testing.T) *search.Index {
	t.Helper()
	index, err := search.Open(zerolog.Nop(), filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = index.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = index.Close()
	})
	return index
}

func addAll(t *testing.T, index *search.Index, docs []search.Document) {
	t.Helper()
	ctx := context.Background()
	for _, doc := range docs {
		require.NoError(t, index.Add(ctx, doc))
	}
	require.NoError(t, index.Flush(ctx))
}

func TestSearchOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	addAll(t, index, []search.Document{
		{ChatID: 1, MessageID: 10, Timestamp: 1700000010, Content: "first message"},
		{ChatID: 1, MessageID: 20, Timestamp: 1700000020, Content: "second message"},
		{ChatID: 1, MessageID: 30, Timestamp: 1700000030, Content: "third message"},
		{ChatID: 2, MessageID: 40, Timestamp: 1700000040, Content: "other chat"},
	})

	hits, err := index.Search(ctx, search.Query{ChatID: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.EqualValues(t, 30, hits[0].MessageID)
	assert.EqualValues(t, 20, hits[1].MessageID)
	assert.Equal(t, time.Unix(1700000030, 0), hits[0].Timestamp)

	// The next page starts strictly below the last seen id.
	hits, err = index.Search(ctx, search.Query{ChatID: 1, PageSize: 2, LastID: 20})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, 10, hits[0].MessageID)
}

func TestSearchKeywordAndTopic(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	addAll(t, index, []search.Document{
		{ChatID: 1, MessageID: 1, ReplyTo: 7, Timestamp: 1, Content: "这是一条测试消息"},
		{ChatID: 1, MessageID: 2, ReplyTo: 7, Timestamp: 2, Content: "完全无关的内容"},
		{ChatID: 1, MessageID: 3, ReplyTo: 9, Timestamp: 3, Content: "另一个话题的测试"},
	})

	hits, err := index.Search(ctx, search.Query{ChatID: 1, Keyword: "测试", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.EqualValues(t, 3, hits[0].MessageID)
	assert.EqualValues(t, 1, hits[1].MessageID)
	assert.Contains(t, hits[0].Snippet, "<b>")

	hits, err = index.Search(ctx, search.Query{ChatID: 1, ReplyTo: 7, Keyword: "测试", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, 1, hits[0].MessageID)
}

var tagPattern = regexp.MustCompile(`</?b>`)

func TestSnippetLength(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	long := strings.Repeat("长", 80) + " keyword tail"
	addAll(t, index, []search.Document{
		{ChatID: 1, MessageID: 1, Timestamp: 1, Content: long},
		{ChatID: 1, MessageID: 2, Timestamp: 2, Content: strings.Repeat("短", 100)},
	})

	hits, err := index.Search(ctx, search.Query{ChatID: 1, Keyword: "keyword", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	text := tagPattern.ReplaceAllString(hits[0].Snippet, "")
	assert.LessOrEqual(t, utf8.RuneCountInString(text), search.SnippetMaxRunes)
	assert.Contains(t, hits[0].Snippet, "<b>keyword</b>")

	// No keyword: plain truncation of the stored content.
	hits, err = index.Search(ctx, search.Query{ChatID: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.LessOrEqual(t, utf8.RuneCountInString(hit.Snippet), search.SnippetMaxRunes)
	}
}

func TestReindexSameMessageOverwrites(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	addAll(t, index, []search.Document{
		{ChatID: 1, MessageID: 1, Timestamp: 1, Content: "before edit"},
	})
	addAll(t, index, []search.Document{
		{ChatID: 1, MessageID: 1, Timestamp: 1, Content: "after edit"},
	})

	hits, err := index.Search(ctx, search.Query{ChatID: 1, Keyword: "edit", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Snippet, "after")
}
