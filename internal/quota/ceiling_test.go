package quota_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/burka/podpulse/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeiling_Allows(t *testing.T) {
	five := quota.Finite(5)
	assert.True(t, five.Allows(0))
	assert.True(t, five.Allows(4))
	assert.False(t, five.Allows(5))
	assert.False(t, five.Allows(6))

	// A count above any former magic sentinel is still not "at limit".
	assert.True(t, quota.Unbounded().Allows(math.MaxInt64))
	assert.True(t, quota.Unbounded().Allows(999999))

	var zero quota.Ceiling
	assert.False(t, zero.Allows(0), "zero value must be the most restrictive ceiling")
}

func TestCeiling_Remaining(t *testing.T) {
	assert.Equal(t, "3", quota.Finite(5).Remaining(2).String())
	assert.Equal(t, "0", quota.Finite(5).Remaining(9).String())
	assert.True(t, quota.Unbounded().Remaining(100).IsUnbounded())
}

func TestCeiling_FiniteClampsNegative(t *testing.T) {
	n, ok := quota.Finite(-3).Max()
	require.True(t, ok)
	assert.Equal(t, int64(0), n)
}

func TestCeiling_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A quota.Ceiling `json:"a"`
		B quota.Ceiling `json:"b"`
	}{quota.Finite(10), quota.Unbounded()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":10,"b":null}`, string(out))

	var in struct {
		A quota.Ceiling `json:"a"`
		B quota.Ceiling `json:"b"`
	}
	require.NoError(t, json.Unmarshal(out, &in))
	assert.Equal(t, quota.Finite(10), in.A)
	assert.True(t, in.B.IsUnbounded())

	var bad quota.Ceiling
	assert.Error(t, json.Unmarshal([]byte(`-1`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &bad))
}

func TestCeiling_Ptr(t *testing.T) {
	assert.Nil(t, quota.Unbounded().Ptr())
	p := quota.Finite(7).Ptr()
	require.NotNil(t, p)
	assert.Equal(t, int64(7), *p)
}
