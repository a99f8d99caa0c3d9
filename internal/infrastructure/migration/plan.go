package migration

import (
	"fmt"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// Plan is an ordered execution plan with parallel level groups. Items within
// a level have no dependency relationship; levels are strict ordering
// barriers.
type Plan struct {
	Migrations []*Migration
	Levels     [][]*Migration
}

// BuildPlan validates the dependency graph and groups migrations into
// parallelizable levels. The incoming slice must already carry discovery
// order, which is kept as the tie-breaker inside each level.
func BuildPlan(migrations []*Migration) (*Plan, error) {
	byID := make(map[string]*Migration, len(migrations))
	for _, m := range migrations {
		if _, dup := byID[m.ID()]; dup {
			return nil, errors.NewMigrationError("plan", m.ID(), fmt.Errorf("duplicate migration name"))
		}
		byID[m.ID()] = m
	}

	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, errors.NewMigrationError("plan", m.ID(),
					fmt.Errorf("depends on unknown migration %q", dep))
			}
		}
	}

	levels, err := levelGroups(migrations, byID)
	if err != nil {
		return nil, err
	}
	return &Plan{Migrations: migrations, Levels: levels}, nil
}

// levelGroups is Kahn's algorithm with level batching. A cycle leaves nodes
// unplaced and is reported as a plan error.
func levelGroups(migrations []*Migration, byID map[string]*Migration) ([][]*Migration, error) {
	indegree := make(map[string]int, len(migrations))
	dependents := make(map[string][]string, len(migrations))
	for _, m := range migrations {
		indegree[m.ID()] = len(m.Dependencies)
		for _, dep := range m.Dependencies {
			dependents[dep] = append(dependents[dep], m.ID())
		}
	}

	var levels [][]*Migration
	placed := 0
	current := make([]*Migration, 0)
	for _, m := range migrations {
		if indegree[m.ID()] == 0 {
			current = append(current, m)
		}
	}

	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)

		next := make([]*Migration, 0)
		for _, m := range current {
			for _, depID := range dependents[m.ID()] {
				indegree[depID]--
				if indegree[depID] == 0 {
					next = append(next, byID[depID])
				}
			}
		}
		// Preserve discovery order inside the level.
		current = reorder(migrations, next)
	}

	if placed != len(migrations) {
		var stuck string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = id
				break
			}
		}
		return nil, errors.NewMigrationError("plan", stuck, fmt.Errorf("dependency cycle detected"))
	}
	return levels, nil
}

func reorder(canonical, subset []*Migration) []*Migration {
	member := make(map[string]bool, len(subset))
	for _, m := range subset {
		member[m.ID()] = true
	}
	out := make([]*Migration, 0, len(subset))
	for _, m := range canonical {
		if member[m.ID()] {
			out = append(out, m)
		}
	}
	return out
}
