package circulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPlate(t *testing.T) {
	valid := []string{"ABC123", "abc123", "XyZ009"}
	invalid := []string{"", "AB123", "ABCD123", "ABC12", "123ABC", "ABC-123", "ABC 123", "ÁBC123"}

	for _, p := range valid {
		assert.True(t, ValidPlate(p), p)
	}
	for _, p := range invalid {
		assert.False(t, ValidPlate(p), p)
	}
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizePlate(" abc123 "))
}

func TestLastDigit(t *testing.T) {
	assert.Equal(t, "3", LastDigit("ABC123"))
	assert.Equal(t, "0", LastDigit("xyz980 "))
	assert.Equal(t, "", LastDigit(""))
}

func TestIsDigit(t *testing.T) {
	assert.True(t, IsDigit("0"))
	assert.True(t, IsDigit("9"))
	assert.False(t, IsDigit("a"))
	assert.False(t, IsDigit("10"))
	assert.False(t, IsDigit(""))
}
