package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Level    string  `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Fraction float64 `mapstructure:"fraction" validate:"gte=0,lte=1"`
	Name     string  `mapstructure:"name" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(&sample{Level: "info", Fraction: 0.5, Name: "x"}))

	err := ValidateStruct(&sample{Level: "loud", Fraction: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level")
	assert.Contains(t, err.Error(), "fraction")
	assert.Contains(t, err.Error(), "name is required")
}
