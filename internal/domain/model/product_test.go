package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags_UnmarshalJSON(t *testing.T) {
	var req struct {
		Tags Tags `json:"tags"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tags":"kitchen, gift ,,kitchen"}`), &req))
	assert.Equal(t, Tags{"kitchen", "gift"}, req.Tags)

	req.Tags = nil
	require.NoError(t, json.Unmarshal([]byte(`{"tags":[" a ","b"]}`), &req))
	assert.Equal(t, Tags{"a", "b"}, req.Tags)

	req.Tags = nil
	require.NoError(t, json.Unmarshal([]byte(`{"tags":null}`), &req))
	assert.Nil(t, req.Tags)

	assert.Error(t, json.Unmarshal([]byte(`{"tags":12}`), &req))
}

func TestTags_ScanValue(t *testing.T) {
	v, err := Tags{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	v, err = Tags(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var out Tags
	require.NoError(t, out.Scan([]byte(`["x"]`)))
	assert.Equal(t, Tags{"x"}, out)
	require.NoError(t, out.Scan(nil))
	assert.Equal(t, Tags{}, out)
	assert.Error(t, out.Scan(1))
}

func TestNextRating(t *testing.T) {
	r := NextRating(decimal.Zero, 0, decimal.NewFromInt(4))
	assert.Equal(t, "4", r.String())

	r = NextRating(decimal.RequireFromString("4.00"), 1, decimal.NewFromInt(5))
	assert.Equal(t, "4.5", r.String())

	// 2桁に丸める
	r = NextRating(decimal.NewFromInt(5), 2, decimal.NewFromInt(4))
	assert.Equal(t, "4.67", r.String())
}
