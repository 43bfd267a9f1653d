package processing

import (
	"context"
	"fmt"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

// MainError sends unprocessable messages to the dead letter queue.
type MainError struct {
	writer repo.ProcessingErrorWriter
}

func NewMainError(writer repo.ProcessingErrorWriter) MainError {
	return MainError{
		writer: writer,
	}
}

func (m MainError) Process(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	err := m.writer.WriteProcessingError(ctx, pErr)
	if err != nil {
		return pipeline.NewErrRetryableError(fmt.Errorf("failed to write processing error: %w", err))
	}

	return nil
}
