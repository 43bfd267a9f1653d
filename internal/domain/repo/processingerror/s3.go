package processingerror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/log"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/version"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/<topic>/<partition>-<offset>.json"
)

var (
	ErrNilEvent = errors.New("nil event")
)

// ObjectPutter is the subset of the s3 client used to write dead letters.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer stores ingest messages that could not be processed, along with the reason.
type S3Writer struct {
	s3client ObjectPutter
	clock    clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client ObjectPutter, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "failed to get hostname, falling backing to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		clock:    clockwork.NewRealClock(),
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (r S3Writer) WithClock(clock clockwork.Clock) S3Writer {
	r.clock = clock

	return r
}

func (r S3Writer) WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	obj, err := r.createProcessingError(pErr)
	if err != nil {
		return fmt.Errorf("failed to create local model: %w", err)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key, err := r.computeObjectKey(pErr)
	if err != nil {
		return fmt.Errorf("failed to compute object key: %w", err)
	}

	contentType := "application/json"

	params := &s3.PutObjectInput{
		Bucket:      &r.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	}

	_, err = r.s3client.PutObject(ctx, params)
	if err != nil {
		return pipeline.NewErrRetryableError(fmt.Errorf("failed to write in s3: %w", err))
	}

	return nil
}

func (r S3Writer) createProcessingError(pErr pipeline.ErrProcessingError) (ProcessingError, error) {
	if pErr.Event == nil {
		return ProcessingError{}, ErrNilEvent
	}

	ret := ProcessingError{
		ProcessingContext: ProcessingContext{
			Component: Component{
				Name:     componentName,
				Branch:   version.Branch,
				Revision: version.Revision,
			},
			Time: r.clock.Now().UTC(),
			Host: r.hostname,
		},
		Sources: Sources{
			Main: Source{
				Topic:     pErr.Event.Topic,
				Partition: pErr.Event.Partition,
				Offset:    pErr.Event.Offset,
				Payload:   pErr.Event.Value,
			},
			Additional: make([]KeyValue, 0, len(pErr.AdditionalInputs)),
		},
		Reason: Reason{
			Category:  pErr.Category,
			Error:     pErr.Error(),
			Retryable: errors.Is(pErr, pipeline.ErrRetryableError),
		},
	}

	for _, kv := range pErr.AdditionalInputs {
		ret.Sources.Additional = append(ret.Sources.Additional, KeyValue{
			Source: kv.Source,
			Key:    kv.Key,
			Value:  kv.Value,
		})
	}

	return ret, nil
}

func (r S3Writer) computeObjectKey(pErr pipeline.ErrProcessingError) (string, error) {
	if pErr.Event == nil {
		return "", ErrNilEvent
	}

	ts := pErr.Event.Timestamp.UTC()

	template := strings.NewReplacer(
		"<prefix>", r.prefix,
		"<year>", fmt.Sprintf("%04d", ts.Year()),
		"<month>", fmt.Sprintf("%02d", ts.Month()),
		"<day>", fmt.Sprintf("%02d", ts.Day()),
		"<topic>", pErr.Event.Topic,
		"<partition>", fmt.Sprintf("%d", pErr.Event.Partition),
		"<offset>", fmt.Sprintf("%d", pErr.Event.Offset),
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/"), nil
}
