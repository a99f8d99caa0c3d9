package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// fileNamePattern matches NNN_name.ext. Rollback siblings carry a _rollback
// suffix before the extension and are attached to their forward file rather
// than discovered as standalone migrations.
var fileNamePattern = regexp.MustCompile(`^(\d{3,})_([A-Za-z0-9][A-Za-z0-9_\-]*)\.(sql|js|json)$`)

var dependsPattern = regexp.MustCompile(`(?m)^\s*(?:--|//)\s*depends:\s*(.+)$`)

const rollbackSuffix = "_rollback"

// Discoverer walks the configured migration directories and builds the
// migration inventory.
type Discoverer struct {
	sqlDir      string
	documentDir string
	sharedDir   string
}

func NewDiscoverer(sqlDir, documentDir, sharedDir string) *Discoverer {
	return &Discoverer{sqlDir: sqlDir, documentDir: documentDir, sharedDir: sharedDir}
}

// Discover returns all migrations sorted by (family order, filename).
func (d *Discoverer) Discover() ([]*Migration, error) {
	var all []*Migration
	for _, src := range []struct {
		dir    string
		family Family
	}{
		{d.sqlDir, FamilySQL},
		{d.documentDir, FamilyDocument},
		{d.sharedDir, FamilyShared},
	} {
		if src.dir == "" {
			continue
		}
		found, err := discoverDir(src.dir, src.family)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Family.order() != all[j].Family.order() {
			return all[i].Family.order() < all[j].Family.order()
		}
		if all[i].Order != all[j].Order {
			return all[i].Order < all[j].Order
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

func discoverDir(dir string, family Family) ([]*Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration dir %s: %w", dir, err)
	}

	var out []*Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.HasSuffix(base, rollbackSuffix) {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		order, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		forwardPath := filepath.Join(dir, name)
		content, err := os.ReadFile(forwardPath)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", forwardPath, err)
		}

		sum := sha256.Sum256(content)
		mig := &Migration{
			Order:        order,
			Name:         m[1] + "_" + m[2],
			Family:       family,
			ForwardPath:  forwardPath,
			ContentHash:  hex.EncodeToString(sum[:]),
			Content:      string(content),
			Type:         inferType(string(content)),
			Dependencies: parseDependencies(string(content)),
			Size:         int64(len(content)),
		}
		mig.Estimated = estimateDuration(mig)

		rollback := filepath.Join(dir, base+rollbackSuffix+filepath.Ext(name))
		if _, err := os.Stat(rollback); err == nil {
			mig.RollbackPath = rollback
		}
		out = append(out, mig)
	}
	return out, nil
}

func readFileContent(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// inferType classifies a migration by its strongest content signal. The
// checks run from most to least specific so a seed file full of INSERTs is
// not mistaken for a schema change.
func inferType(content string) Type {
	upper := strings.ToUpper(content)
	switch {
	case strings.Contains(upper, "CREATE TRIGGER") || strings.Contains(upper, "DROP TRIGGER"):
		return TypeTrigger
	case strings.Contains(upper, "CREATE FUNCTION") || strings.Contains(upper, "CREATE PROCEDURE"):
		return TypeFunction
	case strings.Contains(upper, "CREATE VIEW") || strings.Contains(upper, "CREATE OR REPLACE VIEW"):
		return TypeView
	case strings.Contains(upper, "CREATE INDEX") || strings.Contains(upper, "CREATE UNIQUE INDEX") ||
		strings.Contains(upper, "DROP INDEX") || strings.Contains(upper, "CREATEINDEX"):
		return TypeIndex
	case strings.Contains(upper, "FOREIGN KEY") || strings.Contains(upper, "ADD CONSTRAINT") ||
		strings.Contains(upper, "CHECK ("):
		return TypeConstraint
	case strings.Contains(upper, "CREATE TABLE") || strings.Contains(upper, "ALTER TABLE") ||
		strings.Contains(upper, "DROP TABLE") || strings.Contains(upper, "CREATECOLLECTION"):
		return TypeSchema
	case strings.Contains(upper, "DELETE FROM") || strings.Contains(upper, "TRUNCATE") ||
		strings.Contains(upper, "DROP("):
		return TypeCleanup
	case seedSignal(upper):
		return TypeSeed
	case strings.Contains(upper, "UPDATE ") || strings.Contains(upper, "INSERT INTO") ||
		strings.Contains(upper, "INSERTMANY") || strings.Contains(upper, "UPDATEMANY"):
		return TypeData
	default:
		return TypeData
	}
}

// seedSignal treats a file of only INSERTs into reference-looking tables as
// seed data.
func seedSignal(upper string) bool {
	if !strings.Contains(upper, "INSERT INTO") {
		return false
	}
	return strings.Contains(upper, "SEED") ||
		strings.Contains(upper, "DEFAULT_") ||
		strings.Contains(upper, "REFERENCE")
}

func parseDependencies(content string) []string {
	matches := dependsPattern.FindAllStringSubmatch(content, -1)
	var deps []string
	for _, m := range matches {
		for _, part := range strings.Split(m[1], ",") {
			if dep := strings.TrimSpace(part); dep != "" {
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

// estimateDuration is a coarse planning figure from file size plus content
// signals that correlate with long-running work.
func estimateDuration(m *Migration) time.Duration {
	est := time.Second + time.Duration(m.Size/1024)*100*time.Millisecond

	upper := strings.ToUpper(m.Content)
	if m.Type == TypeIndex {
		est += 30 * time.Second
	}
	if strings.Contains(upper, "ALTER TABLE") {
		est += 10 * time.Second
	}
	if m.Type == TypeData || m.Type == TypeSeed {
		est += time.Duration(strings.Count(upper, "INSERT INTO")) * time.Second
	}
	return est
}
