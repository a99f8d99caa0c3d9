package migration

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Severity splits validation findings into blockers and advisories.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding for one migration.
type Issue struct {
	Migration string
	Severity  Severity
	Message   string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Migration, i.Message)
}

var (
	wherePattern    = regexp.MustCompile(`(?is)\bWHERE\b`)
	dropTablePtn    = regexp.MustCompile(`(?is)\bDROP\s+TABLE\b`)
	truncatePtn     = regexp.MustCompile(`(?is)\bTRUNCATE\b`)
	breakingPattern = regexp.MustCompile(`(?is)\b(DROP\s+TABLE|DROP\s+COLUMN|DROP\s+INDEX|TRUNCATE|RENAME\s+(TO|COLUMN))\b`)
)

// Validator checks a plan before execution. The db handle is used for
// syntactic prepare checks on the SQL family and may be nil to skip them.
type Validator struct {
	db *sql.DB
}

func NewValidator(db *sql.DB) *Validator {
	return &Validator{db: db}
}

// Validate runs every check over every migration. Errors block execution,
// warnings do not.
func (v *Validator) Validate(ctx context.Context, migrations []*Migration) []Issue {
	known := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		known[m.ID()] = true
	}

	var issues []Issue
	for _, m := range migrations {
		issues = append(issues, v.validateOne(ctx, m, known)...)
	}
	return issues
}

// HasErrors reports whether any finding is a blocker.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (v *Validator) validateOne(ctx context.Context, m *Migration, known map[string]bool) []Issue {
	var issues []Issue

	for _, dep := range m.Dependencies {
		if !known[dep] {
			issues = append(issues, Issue{
				Migration: m.ID(),
				Severity:  SeverityError,
				Message:   fmt.Sprintf("declared dependency %q does not exist", dep),
			})
		}
	}

	issues = append(issues, scanDangerous(m)...)

	if breakingPattern.MatchString(m.Content) && !m.HasRollback() {
		issues = append(issues, Issue{
			Migration: m.ID(),
			Severity:  SeverityWarning,
			Message:   "breaking change without a rollback script",
		})
	}

	if m.Family == FamilySQL && v.db != nil {
		issues = append(issues, v.prepareCheck(ctx, m)...)
	}
	return issues
}

// scanDangerous flags statements that rewrite or destroy data wholesale.
func scanDangerous(m *Migration) []Issue {
	var issues []Issue
	for _, stmt := range splitStatements(m.Content) {
		upper := strings.ToUpper(stmt)
		switch {
		case dropTablePtn.MatchString(stmt):
			issues = append(issues, Issue{m.ID(), SeverityWarning, "contains DROP TABLE"})
		case truncatePtn.MatchString(stmt):
			issues = append(issues, Issue{m.ID(), SeverityWarning, "contains TRUNCATE"})
		case strings.HasPrefix(upper, "DELETE") && !wherePattern.MatchString(stmt):
			issues = append(issues, Issue{m.ID(), SeverityError, "unconditional DELETE"})
		case strings.HasPrefix(upper, "UPDATE") && !wherePattern.MatchString(stmt):
			issues = append(issues, Issue{m.ID(), SeverityError, "unconditional UPDATE"})
		}
	}
	return issues
}

// prepareCheck asks the server to parse each statement without running it.
// Statements some drivers refuse to prepare (DDL) are skipped rather than
// failed.
func (v *Validator) prepareCheck(ctx context.Context, m *Migration) []Issue {
	var issues []Issue
	for _, stmt := range splitStatements(m.Content) {
		upper := strings.ToUpper(strings.TrimSpace(stmt))
		if !strings.HasPrefix(upper, "SELECT") &&
			!strings.HasPrefix(upper, "INSERT") &&
			!strings.HasPrefix(upper, "UPDATE") &&
			!strings.HasPrefix(upper, "DELETE") {
			continue
		}
		ps, err := v.db.PrepareContext(ctx, stmt)
		if err != nil {
			// Tables referenced by later statements may not exist yet at
			// validation time, so only clear syntax faults block.
			severity := SeverityWarning
			if strings.Contains(strings.ToLower(err.Error()), "syntax") {
				severity = SeverityError
			}
			issues = append(issues, Issue{
				Migration: m.ID(),
				Severity:  severity,
				Message:   fmt.Sprintf("statement failed to prepare: %v", err),
			})
			continue
		}
		ps.Close()
	}
	return issues
}

// splitStatements is a semicolon splitter good enough for migration files;
// it strips line comments and skips empty fragments.
func splitStatements(content string) []string {
	var cleaned []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	var out []string
	for _, stmt := range strings.Split(strings.Join(cleaned, "\n"), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
