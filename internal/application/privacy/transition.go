package privacy

import (
	"context"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// transitionRequest applies a state change, persists it and appends the
// audit entry. Every transition lands in the audit log, including failures.
func transitionRequest(
	ctx context.Context,
	requests domain.RequestRepository,
	audit domain.AuditLog,
	r *domain.PrivacyRequest,
	next domain.RequestState,
	reason string,
	log logger.Interface,
) {
	if err := r.Transition(next); err != nil {
		log.Errorw("illegal request transition",
			"request_id", r.ID, "from", r.State, "to", next, "error", err)
		return
	}
	r.ReasonCode = reason
	if err := requests.Update(ctx, r); err != nil {
		log.Errorw("failed to persist request transition",
			"request_id", r.ID, "state", next, "error", err)
	}
	audit.Append(ctx, r.SubjectID, "request:"+string(next), map[string]any{
		"request_id": r.ID,
		"kind":       r.Kind,
		"reason":     reason,
	})
}
