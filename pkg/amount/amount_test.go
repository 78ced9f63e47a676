package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDisplay(t *testing.T) {
	t.Run("whole number", func(t *testing.T) {
		units, err := FromDisplay("3")
		require.NoError(t, err)
		assert.Equal(t, "3000000000000000000", units)
	})

	t.Run("fractional", func(t *testing.T) {
		units, err := FromDisplay("1.5")
		require.NoError(t, err)
		assert.Equal(t, "1500000000000000000", units)
	})

	t.Run("leading dot", func(t *testing.T) {
		units, err := FromDisplay(".25")
		require.NoError(t, err)
		assert.Equal(t, "250000000000000000", units)
	})

	t.Run("zero", func(t *testing.T) {
		units, err := FromDisplay("0")
		require.NoError(t, err)
		assert.Equal(t, "0", units)
	})

	t.Run("max precision", func(t *testing.T) {
		units, err := FromDisplay("0.000000000000000001")
		require.NoError(t, err)
		assert.Equal(t, "1", units)
	})

	t.Run("too many decimal places", func(t *testing.T) {
		_, err := FromDisplay("0.0000000000000000001")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromDisplay("")
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := FromDisplay("abc")
		assert.Error(t, err)
	})

	t.Run("negative", func(t *testing.T) {
		_, err := FromDisplay("-1")
		assert.Error(t, err)
	})
}

func TestToDisplay(t *testing.T) {
	t.Run("whole number", func(t *testing.T) {
		display, err := ToDisplay("3000000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "3", display)
	})

	t.Run("trims trailing zeros", func(t *testing.T) {
		display, err := ToDisplay("1500000000000000000")
		require.NoError(t, err)
		assert.Equal(t, "1.5", display)
	})

	t.Run("sub-unit amount keeps leading zeros", func(t *testing.T) {
		display, err := ToDisplay("1")
		require.NoError(t, err)
		assert.Equal(t, "0.000000000000000001", display)
	})

	t.Run("round trips", func(t *testing.T) {
		for _, display := range []string{"0", "1", "1.5", "0.25", "123456.789"} {
			units, err := FromDisplay(display)
			require.NoError(t, err)

			back, err := ToDisplay(units)
			require.NoError(t, err)
			assert.Equal(t, display, back)
		}
	})
}

func TestAdd(t *testing.T) {
	sum, err := Add("1500000000000000000", "250000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1750000000000000000", sum)

	_, err = Add("1", "nope")
	assert.Error(t, err)
}

func TestCmp(t *testing.T) {
	less, err := Cmp("1", "2")
	require.NoError(t, err)
	assert.Equal(t, -1, less)

	equal, err := Cmp("100", "100")
	require.NoError(t, err)
	assert.Equal(t, 0, equal)

	greater, err := Cmp("3", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, greater)
}

func TestFeeSplit(t *testing.T) {
	t.Run("two percent of three tokens", func(t *testing.T) {
		fee, net, err := FeeSplit("3000000000000000000", 200)
		require.NoError(t, err)
		assert.Equal(t, "60000000000000000", fee)
		assert.Equal(t, "2940000000000000000", net)
	})

	t.Run("fee plus net equals gross", func(t *testing.T) {
		for _, units := range []string{"0", "1", "7", "9999", "1000000000000000001"} {
			fee, net, err := FeeSplit(units, 200)
			require.NoError(t, err)

			sum, err := Add(fee, net)
			require.NoError(t, err)
			assert.Equal(t, units, sum)
		}
	})

	t.Run("fee rounds down", func(t *testing.T) {
		// 2% of 49 is 0.98, floored to 0.
		fee, net, err := FeeSplit("49", 200)
		require.NoError(t, err)
		assert.Equal(t, "0", fee)
		assert.Equal(t, "49", net)
	})

	t.Run("zero basis points", func(t *testing.T) {
		fee, net, err := FeeSplit("1000", 0)
		require.NoError(t, err)
		assert.Equal(t, "0", fee)
		assert.Equal(t, "1000", net)
	})

	t.Run("full basis points", func(t *testing.T) {
		fee, net, err := FeeSplit("1000", 10000)
		require.NoError(t, err)
		assert.Equal(t, "1000", fee)
		assert.Equal(t, "0", net)
	})

	t.Run("invalid basis points", func(t *testing.T) {
		_, _, err := FeeSplit("1000", 10001)
		assert.Error(t, err)

		_, _, err = FeeSplit("1000", -1)
		assert.Error(t, err)
	})
}

func TestIsZero(t *testing.T) {
	zero, err := IsZero("0")
	require.NoError(t, err)
	assert.True(t, zero)

	nonzero, err := IsZero("1")
	require.NoError(t, err)
	assert.False(t, nonzero)

	_, err = IsZero("")
	assert.Error(t, err)
}
