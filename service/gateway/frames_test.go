package gateway

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabProject/tools/errs"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"ping","x":1}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", f.Type)
	assert.Equal(t, float64(1), f.Fields["x"])
	_, hasType := f.Fields["type"]
	assert.False(t, hasType, "type must be stripped from fields")

	_, err = ParseFrame([]byte(`{not json`))
	assert.True(t, errors.Is(err, errs.ErrFrameMalformed))

	_, err = ParseFrame([]byte(`{"x":1}`))
	assert.True(t, errors.Is(err, errs.ErrMissingField))

	_, err = ParseFrame([]byte(`{"type":42}`))
	assert.True(t, errors.Is(err, errs.ErrMissingField))
}

func TestOutboundStampsTypeAndTimestamp(t *testing.T) {
	raw := Outbound(TypePong, map[string]any{"a": "b"})
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, TypePong, m["type"])
	assert.Equal(t, "b", m["a"])
	ts, ok := m["timestamp"].(float64)
	require.True(t, ok)
	assert.Greater(t, ts, float64(0))

	// a client-supplied timestamp never survives
	raw = Outbound(TypePong, map[string]any{"timestamp": 1})
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Greater(t, m["timestamp"].(float64), float64(1e12))
}

func TestErrorFrameCarriesCode(t *testing.T) {
	raw := ErrorFrame(errs.ErrRateLimited.WrapMsg("x"))
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, TypeError, m["type"])
	assert.Equal(t, float64(errs.RateLimitedError), m["code"])
	assert.Equal(t, "message rate exceeded", m["message"])

	raw = ErrorFrame(errors.New("plain"))
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, float64(errs.ServerInternalError), m["code"])
}

func TestValidID(t *testing.T) {
	valid := []string{
		"room-1",
		"a",
		"work_space_42",
		"5f1d7a2b9c3e4f5a6b7c8d9e",
		"c56a4180-65aa-42ec-a945-5fd21dec0538",
	}
	for _, s := range valid {
		assert.True(t, ValidID(s), s)
	}

	invalid := []string{
		"",
		"has space",
		"semi;colon",
		"x/y",
		"$where",
		"àccented",
		strings.Repeat("a", 80),
		"{c56a4180-65aa-42ec-a945-5fd21dec0538}",
		"urn:uuid:c56a4180-65aa-42ec-a945-5fd21dec0538",
	}
	for _, s := range invalid {
		assert.False(t, ValidID(s), s)
	}
}

func TestContainsOperatorInjection(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"clean", map[string]any{"content": "hello", "n": 1}, false},
		{"dollar key", map[string]any{"$where": "1"}, true},
		{"dotted key", map[string]any{"a.b": 1}, true},
		{"nested dollar", map[string]any{"meta": map[string]any{"$function": "x"}}, true},
		{"in array", map[string]any{"items": []any{map[string]any{"$accumulator": 1}}}, true},
		{"operator in string", map[string]any{"content": "try $where(this)"}, true},
		{"mapReduce string", map[string]any{"content": "mapReduce attack"}, true},
		{"dollar in value is fine when harmless", map[string]any{"price": "$5"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ContainsOperatorInjection(tc.fields))
		})
	}

	// nesting past the depth cap is rejected wholesale
	deep := map[string]any{}
	cur := deep
	for i := 0; i < 20; i++ {
		next := map[string]any{}
		cur["d"] = next
		cur = next
	}
	assert.True(t, ContainsOperatorInjection(deep))
}
