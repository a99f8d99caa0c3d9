package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

func mig(name string, deps ...string) *Migration {
	return &Migration{Name: name, Family: FamilySQL, Dependencies: deps}
}

func TestBuildPlan_LevelGroups(t *testing.T) {
	a := mig("001_a")
	b := mig("002_b")
	c := mig("003_c", "001_a", "002_b")
	d := mig("004_d", "003_c")

	plan, err := BuildPlan([]*Migration{a, b, c, d})
	require.NoError(t, err)
	require.Len(t, plan.Levels, 3)

	assert.Equal(t, []*Migration{a, b}, plan.Levels[0])
	assert.Equal(t, []*Migration{c}, plan.Levels[1])
	assert.Equal(t, []*Migration{d}, plan.Levels[2])
}

func TestBuildPlan_UnknownDependency(t *testing.T) {
	_, err := BuildPlan([]*Migration{mig("001_a", "000_ghost")})
	require.Error(t, err)
	assert.True(t, errors.IsMigrationError(err))
}

func TestBuildPlan_CycleDetected(t *testing.T) {
	a := mig("001_a", "002_b")
	b := mig("002_b", "001_a")
	_, err := BuildPlan([]*Migration{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildPlan_DuplicateName(t *testing.T) {
	_, err := BuildPlan([]*Migration{mig("001_a"), mig("001_a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
