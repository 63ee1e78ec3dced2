package onebot_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/onebot"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    onebot.ID
		wantErr bool
	}{
		{name: "number", input: `42`, want: "42"},
		{name: "big number", input: `9007199254740993`, want: "9007199254740993"},
		{name: "string", input: `"42"`, want: "42"},
		{name: "negative", input: `-1001234567`, want: "-1001234567"},
		{name: "null", input: `null`, want: ""},
		{name: "empty string", input: `""`, want: ""},
		{name: "object", input: `{"a":1}`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var id onebot.ID
			err := json.Unmarshal([]byte(test.input), &id)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, id)
		})
	}
}

func TestIDMarshal(t *testing.T) {
	data, err := json.Marshal(onebot.ID("10001"))
	require.NoError(t, err)
	assert.Equal(t, `"10001"`, string(data))
}

func TestIDInt64(t *testing.T) {
	assert.EqualValues(t, 42, onebot.ID("42").Int64())
	assert.EqualValues(t, -1001234567, onebot.ID("-1001234567").Int64())
	assert.EqualValues(t, 0, onebot.ID("").Int64())
	assert.EqualValues(t, 0, onebot.ID("abc").Int64())
}

func TestIDIsZero(t *testing.T) {
	assert.True(t, onebot.ID("").IsZero())
	assert.True(t, onebot.ID("0").IsZero())
	assert.False(t, onebot.ID("1").IsZero())
}
