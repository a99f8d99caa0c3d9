package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuesFor(t *testing.T, m *Migration) []Issue {
	t.Helper()
	return NewValidator(nil).Validate(context.Background(), []*Migration{m})
}

func TestValidator_UnconditionalDelete(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "001_wipe", Family: FamilySQL,
		Content: "DELETE FROM players;"})
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "unconditional DELETE")
}

func TestValidator_DeleteWithWhereIsFine(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "001_prune", Family: FamilySQL,
		Content: "DELETE FROM sessions WHERE expired = 1;"})
	assert.Empty(t, issues)
}

func TestValidator_UnconditionalUpdate(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "001_reset", Family: FamilySQL,
		Content: "UPDATE players SET score = 0;"})
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
}

func TestValidator_BreakingWithoutRollback(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "001_drop", Family: FamilySQL,
		Content: "DROP TABLE legacy_scores;"})

	var sawDangerous, sawNoRollback bool
	for _, i := range issues {
		require.Equal(t, SeverityWarning, i.Severity)
		switch {
		case i.Message == "contains DROP TABLE":
			sawDangerous = true
		case i.Message == "breaking change without a rollback script":
			sawNoRollback = true
		}
	}
	assert.True(t, sawDangerous)
	assert.True(t, sawNoRollback)
}

func TestValidator_BreakingWithRollbackOnlyDangerWarning(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "001_drop", Family: FamilySQL,
		RollbackPath: "001_drop_rollback.sql",
		Content:      "DROP TABLE legacy_scores;"})
	require.Len(t, issues, 1)
	assert.Equal(t, "contains DROP TABLE", issues[0].Message)
}

func TestValidator_MissingDependency(t *testing.T) {
	issues := issuesFor(t, &Migration{Name: "002_b", Family: FamilySQL,
		Dependencies: []string{"001_missing"},
		Content:      "CREATE TABLE b (id INT);"})
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "001_missing")
}

func TestHasErrors(t *testing.T) {
	assert.False(t, HasErrors([]Issue{{Severity: SeverityWarning}}))
	assert.True(t, HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}))
}

func TestSplitStatements_StripsComments(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id INT);\n\n// note\nCREATE TABLE b (id INT);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}
