package nullable

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfRejectsNaN(t *testing.T) {
	assert.False(t, Of(math.NaN()).Valid)
	assert.False(t, Of(math.Inf(1)).Valid)
	assert.True(t, Of(0).Valid)
}

func TestMulPropagatesMissing(t *testing.T) {
	assert.Equal(t, Of(6), Of(2).Mul(Of(3)))
	assert.False(t, Of(2).Mul(Null()).Valid)
	assert.False(t, Null().Mul(Of(2)).Valid)
	assert.False(t, Null().MulFloat(10).Valid)
	assert.False(t, Product(Of(1), Of(2), Null()).Valid)
	assert.Equal(t, Of(24), Product(Of(2), Of(3), Of(4)))
}

func TestJSON(t *testing.T) {
	var v struct {
		A Float64 `json:"a"`
		B Float64 `json:"b"`
		C Float64 `json:"c"`
		D Float64 `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1.5,"b":"NaN","c":null,"d":"42"}`), &v))
	assert.Equal(t, Of(1.5), v.A)
	assert.False(t, v.B.Valid)
	assert.False(t, v.C.Valid)
	assert.Equal(t, Of(42), v.D)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null,"c":null,"d":42}`, string(out))
}

func TestCSV(t *testing.T) {
	s, err := Null().MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = Of(125000).MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "125000", s)

	var f Float64
	require.NoError(t, f.UnmarshalCSV("0.05"))
	assert.Equal(t, Of(0.05), f)
	require.NoError(t, f.UnmarshalCSV(""))
	assert.False(t, f.Valid)
	assert.Error(t, f.UnmarshalCSV("abc"))
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Null().Ptr())
	p := Of(3).Ptr()
	require.NotNil(t, p)
	assert.Equal(t, 3.0, *p)
	assert.Equal(t, Of(3), FromPtr(p))
	assert.False(t, FromPtr(nil).Valid)
}
