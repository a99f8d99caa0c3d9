package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompatStrategy_SelectsRunnerByName(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
	}{
		{name: "", wantName: "goose"},
		{name: "goose", wantName: "goose"},
		{name: "golang-migrate", wantName: "golang_migrate"},
		{name: "golang_migrate", wantName: "golang_migrate"},
	}
	for _, tt := range tests {
		strategy, err := NewCompatStrategy(tt.name, "/tmp/migrations")
		require.NoError(t, err, "runner %q", tt.name)
		assert.Equal(t, tt.wantName, strategy.GetName())
	}
}

func TestNewCompatStrategy_RejectsUnknownRunner(t *testing.T) {
	_, err := NewCompatStrategy("flyway", "/tmp/migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flyway")
}
