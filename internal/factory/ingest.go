package factory

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/processingerror"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/processing"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

// CreateIngestRunner builds the kafka pipeline applying execution backend notifications to the orchestrator state.
func CreateIngestRunner(ctx context.Context, conf config.Ingest, o Orchestrator, registry prometheus.Registerer, logger logr.Logger) (pipeline.Runner[entity.BackendEvent], common.CloseFunc, error) {
	var ret pipeline.Runner[entity.BackendEvent]

	// Main processing
	mainProcessing, err := DecorateProcessing(processing.NewMain(o.Campaigns, o.Enrollments).WithLogger(logger), conf.Retry, registry)
	if err != nil {
		return ret, nil, fmt.Errorf("failed to decorate processing: %w", err)
	}

	// Error processing
	s3Client, err := CreateS3Client(ctx, conf.DeadLetterQueue)
	if err != nil {
		return ret, nil, fmt.Errorf("failed to create dlq s3 client: %w", err)
	}

	writer := processingerror.NewS3Writer(s3Client, conf.DeadLetterQueue.Bucket, conf.DeadLetterQueue.KeyPrefix)

	errorProcessing, err := DecorateErrorProcessing(processing.NewMainError(writer), conf.Retry, registry)
	if err != nil {
		return ret, nil, fmt.Errorf("failed to decorate error processing: %w", err)
	}

	// Kafka
	consumer, err := CreateKafkaConsumer(conf.Kafka)
	if err != nil {
		return ret, nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	closer := func(context.Context) error {
		return consumer.Close()
	}

	ret = pipeline.NewRunner(consumer, []string{conf.Kafka.Consumer.Topic}, mainProcessing, errorProcessing).WithLogger(logger)

	return ret, closer, nil
}
