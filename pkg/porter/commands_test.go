package porter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/exsync"
)

func TestCallbackTokens(t *testing.T) {
	br := &Bridge{callbacks: exsync.NewMap[string, CommandCallback]()}
	cb := CommandCallback{Category: "link", Action: "list", Page: 2, Keyword: "alice", Data: "7"}

	token := br.putCallback(cb)
	// Telegram rejects callback data over 64 bytes.
	assert.LessOrEqual(t, len(token), 64)

	// The token is content addressed, so re-rendering the same button
	// produces the same bytes.
	assert.Equal(t, token, br.putCallback(cb))

	got, ok := br.callbacks.Pop(string(token))
	require.True(t, ok)
	assert.Equal(t, cb, got)

	_, ok = br.callbacks.Pop(string(token))
	assert.False(t, ok)
}

func TestCallbackTokensDistinct(t *testing.T) {
	br := &Bridge{callbacks: exsync.NewMap[string, CommandCallback]()}
	a := br.putCallback(CommandCallback{Category: "link", Action: "create", Data: "1"})
	b := br.putCallback(CommandCallback{Category: "link", Action: "create", Data: "2"})
	assert.NotEqual(t, a, b)

	_, ok := br.callbacks.Pop(placeholderData)
	assert.False(t, ok)
}
