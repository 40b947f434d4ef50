package ports

import (
	"context"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// AnswerService is the single inbound contract of the engine.
type AnswerService interface {
	Answer(ctx context.Context, query domain.Query) (*domain.AnswerResult, error)
}
