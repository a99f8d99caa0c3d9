package migration

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// DocumentStore is the slice of a document database the engine needs:
// running migration scripts and listing collections for verification.
type DocumentStore interface {
	Run(ctx context.Context, m *Migration, rollback bool) error
	ListCollections(ctx context.Context) ([]string, error)
}

// MongoStore drives document migrations against MongoDB. Scripts are JSON
// command documents, one per line block, executed via RunCommand; a
// _rollback sibling holds the down commands.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Run(ctx context.Context, m *Migration, rollback bool) error {
	content := m.Content
	if rollback {
		if m.RollbackPath == "" {
			return errors.NewMigrationError("rollback", m.ID(), fmt.Errorf("no rollback script"))
		}
		var err error
		content, err = readFileContent(m.RollbackPath)
		if err != nil {
			return errors.NewMigrationError("rollback", m.ID(), err)
		}
	}

	for _, raw := range splitCommands(content) {
		var cmd bson.D
		if err := bson.UnmarshalExtJSON([]byte(raw), true, &cmd); err != nil {
			return errors.NewMigrationError("execute", m.ID(),
				fmt.Errorf("parse command: %w", err))
		}
		if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
			return errors.NewMigrationError("execute", m.ID(), err)
		}
	}
	return nil
}

func (s *MongoStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.NewStoreError("mongo", "list collections", err)
	}
	return names, nil
}

// splitCommands separates a script into command documents. Documents are
// delimited by blank lines; line comments are dropped.
func splitCommands(content string) []string {
	var blocks []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}
