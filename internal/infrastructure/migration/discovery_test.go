package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverer_OrderAndRollbacks(t *testing.T) {
	sqlDir := t.TempDir()
	docDir := t.TempDir()
	sharedDir := t.TempDir()

	writeFile(t, sqlDir, "002_add_scores.sql", "ALTER TABLE players ADD COLUMN score INT;")
	writeFile(t, sqlDir, "001_create_players.sql", "CREATE TABLE players (id INT);")
	writeFile(t, sqlDir, "001_create_players_rollback.sql", "DROP TABLE players;")
	writeFile(t, docDir, "001_init_profiles.js", `{"create": "profiles"}`)
	writeFile(t, sharedDir, "001_sync_counts.sql", "UPDATE stats SET n = 0 WHERE 1=1;")
	writeFile(t, sqlDir, "notes.txt", "not a migration")

	found, err := NewDiscoverer(sqlDir, docDir, sharedDir).Discover()
	require.NoError(t, err)
	require.Len(t, found, 4)

	assert.Equal(t, "001_create_players", found[0].Name)
	assert.Equal(t, FamilySQL, found[0].Family)
	assert.True(t, found[0].HasRollback())
	assert.Len(t, found[0].ContentHash, 64)

	assert.Equal(t, "002_add_scores", found[1].Name)
	assert.False(t, found[1].HasRollback())

	assert.Equal(t, FamilyDocument, found[2].Family)

	// Shared migrations sort after every database-specific one.
	assert.Equal(t, FamilyShared, found[3].Family)
}

func TestDiscoverer_ParsesDependencies(t *testing.T) {
	sqlDir := t.TempDir()
	writeFile(t, sqlDir, "002_seed_ranks.sql",
		"-- depends: 001_create_players, 001_create_ranks\nINSERT INTO ranks (name) VALUES ('gold');")

	found, err := NewDiscoverer(sqlDir, "", "").Discover()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"001_create_players", "001_create_ranks"}, found[0].Dependencies)
}

func TestDiscoverer_MissingDirIsEmpty(t *testing.T) {
	found, err := NewDiscoverer(filepath.Join(t.TempDir(), "absent"), "", "").Discover()
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Type
	}{
		{"schema", "CREATE TABLE t (id INT);", TypeSchema},
		{"index", "CREATE INDEX idx_t ON t (id);", TypeIndex},
		{"constraint", "ALTER TABLE t ADD CONSTRAINT fk FOREIGN KEY (x) REFERENCES y(id);", TypeConstraint},
		{"trigger", "CREATE TRIGGER trg AFTER INSERT ON t BEGIN END;", TypeTrigger},
		{"view", "CREATE VIEW v AS SELECT 1;", TypeView},
		{"cleanup", "DELETE FROM sessions WHERE expired = 1;", TypeCleanup},
		{"seed", "INSERT INTO seed_roles (name) VALUES ('admin');", TypeSeed},
		{"data", "UPDATE players SET score = 0 WHERE score IS NULL;", TypeData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.content))
		})
	}
}

func TestEstimateDuration_GrowsWithSignals(t *testing.T) {
	small := &Migration{Content: "UPDATE t SET a=1 WHERE id=1;", Type: TypeData, Size: 30}
	index := &Migration{Content: "CREATE INDEX i ON t (a);", Type: TypeIndex, Size: 25}
	assert.Greater(t, estimateDuration(index), estimateDuration(small))
}
