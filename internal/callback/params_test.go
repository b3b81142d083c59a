package callback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsPreserveInsertionOrder(t *testing.T) {
	p := NewParams("CallUUID", "u1", "To", "1555", "From", "1666")
	p.Set("To", "1777")
	p.Set("Direction", "inbound")

	assert.Equal(t, []string{"CallUUID", "To", "From", "Direction"}, p.Keys())
	v, ok := p.Get("To")
	require.True(t, ok)
	assert.Equal(t, "1777", v)
}

func TestParamsMergeOtherWins(t *testing.T) {
	base := NewParams("A", "1", "B", "2")
	base.Merge(NewParams("B", "override", "C", "3"))

	assert.Equal(t, map[string]string{"A": "1", "B": "override", "C": "3"}, base.Map())
	assert.Equal(t, []string{"A", "B", "C"}, base.Keys())

	base.Merge(nil)
	assert.Equal(t, 3, base.Len())
}

func TestParamsEncode(t *testing.T) {
	p := NewParams("To", "+1 555", "SIPTransferURI", "sip:bob@example.com")
	assert.Equal(t, "To=%2B1+555&SIPTransferURI=sip%3Abob%40example.com", p.Encode())
}

func TestParamsMarshalJSONKeepsOrder(t *testing.T) {
	p := NewParams("Z", "1", "A", "\"quoted\"")
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"Z":"1","A":"\"quoted\""}`, string(b))
}

func TestParamsNilAndZeroValue(t *testing.T) {
	var nilParams *Params
	assert.Equal(t, 0, nilParams.Len())
	assert.False(t, nilParams.Has("x"))
	assert.Equal(t, "{}", nilParams.String())
	assert.Equal(t, 0, nilParams.Clone().Len())

	var zero Params
	zero.Set("k", "v")
	assert.True(t, zero.Has("k"))
}

func TestParamsCloneIsIndependent(t *testing.T) {
	orig := NewParams("A", "1")
	c := orig.Clone()
	c.Set("A", "2")

	v, _ := orig.Get("A")
	assert.Equal(t, "1", v)
}
