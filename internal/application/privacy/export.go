package privacy

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// CategorySchema describes one exported category for the receiving system.
type CategorySchema struct {
	Category domain.DataCategory `json:"category"`
	Fields   []string            `json:"fields"`
}

// ExportArtifact is the machine-readable portability document.
type ExportArtifact struct {
	SubjectID          string                                       `json:"subject_id"`
	GeneratedAt        time.Time                                    `json:"generated_at"`
	Format             string                                       `json:"format"`
	Categories         map[domain.DataCategory][]domain.FieldRecord `json:"categories"`
	Schema             []CategorySchema                             `json:"schema"`
	RecordCount        int                                          `json:"record_count"`
	ImportInstructions string                                       `json:"import_instructions"`
}

const importInstructions = "Import categories in schema order. Field values are UTF-8 strings; " +
	"replay each category as a batch keyed by subject_id. Timestamps are RFC 3339."

// ExportUseCase compiles the portable subset of a subject's data: only
// categories the platform would erase or anonymize, never retained ones.
type ExportUseCase struct {
	requests     domain.RequestRepository
	store        domain.SubjectStore
	audit        domain.AuditLog
	policy       map[domain.DataCategory]domain.CategoryPolicy
	retryElapsed time.Duration
	logger       logger.Interface
}

func NewExportUseCase(
	requests domain.RequestRepository,
	store domain.SubjectStore,
	audit domain.AuditLog,
	policy map[domain.DataCategory]domain.CategoryPolicy,
	retryElapsed time.Duration,
	logger logger.Interface,
) *ExportUseCase {
	if policy == nil {
		policy = domain.DefaultErasurePolicy()
	}
	return &ExportUseCase{
		requests:     requests,
		store:        store,
		audit:        audit,
		policy:       policy,
		retryElapsed: retryElapsed,
		logger:       logger,
	}
}

// Execute builds the artifact for the requested categories. Empty
// categories means every portable one.
func (uc *ExportUseCase) Execute(ctx context.Context, subjectID string, categories []domain.DataCategory) (*ExportArtifact, error) {
	request, err := domain.NewPrivacyRequest(uuid.NewString(), domain.RequestPortability, subjectID)
	if err != nil {
		return nil, err
	}
	if err := uc.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	uc.transition(ctx, request, domain.StateProcessing, "")

	portable := uc.portableSet()
	if len(categories) == 0 {
		categories = portable
	} else {
		allowed := make(map[domain.DataCategory]bool, len(portable))
		for _, c := range portable {
			allowed[c] = true
		}
		for _, c := range categories {
			if !allowed[c] {
				uc.transition(ctx, request, domain.StateRefused, "category_not_portable")
				return nil, errors.NewValidationError("category is not portable: " + string(c))
			}
		}
	}

	var records []domain.FieldRecord
	err = withRetry(ctx, uc.retryElapsed, func() error {
		var cerr error
		records, cerr = uc.store.Collect(ctx, subjectID, categories)
		return cerr
	})
	if err != nil {
		uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
		return nil, err
	}

	artifact := &ExportArtifact{
		SubjectID:          subjectID,
		GeneratedAt:        time.Now(),
		Format:             "application/json",
		Categories:         make(map[domain.DataCategory][]domain.FieldRecord),
		ImportInstructions: importInstructions,
	}
	fields := make(map[domain.DataCategory]map[string]bool)
	for _, rec := range records {
		artifact.Categories[rec.Category] = append(artifact.Categories[rec.Category], rec)
		artifact.RecordCount++
		if fields[rec.Category] == nil {
			fields[rec.Category] = make(map[string]bool)
		}
		fields[rec.Category][rec.Field] = true
	}
	for _, category := range categories {
		if len(fields[category]) == 0 {
			continue
		}
		schema := CategorySchema{Category: category}
		for field := range fields[category] {
			schema.Fields = append(schema.Fields, field)
		}
		sort.Strings(schema.Fields)
		artifact.Schema = append(artifact.Schema, schema)
	}

	if payload, merr := json.Marshal(artifact); merr == nil {
		request.Artifact = payload
	}
	uc.transition(ctx, request, domain.StateCompleted, "")
	return artifact, nil
}

// portableSet is every category whose erasure policy is erase or anonymize.
func (uc *ExportUseCase) portableSet() []domain.DataCategory {
	var out []domain.DataCategory
	for _, category := range domain.AllCategories() {
		policy, ok := uc.policy[category]
		if !ok || policy.Action != domain.ActionRetain {
			out = append(out, category)
		}
	}
	return out
}

func (uc *ExportUseCase) transition(ctx context.Context, r *domain.PrivacyRequest, next domain.RequestState, reason string) {
	transitionRequest(ctx, uc.requests, uc.audit, r, next, reason, uc.logger)
}
