package deliveryfailure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/processingerror"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/version"
)

const keyTemplate = "<prefix>/<year>/<month>/<day>/<handle>/<event>.json"

var errMissingIdentifier = errors.New("missing handle or event id")

// S3Writer keeps webhook deliveries that exhausted their retries, so they can be replayed.
type S3Writer struct {
	s3client processingerror.ObjectPutter

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client processingerror.ObjectPutter, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "<unknown>"
	}

	return S3Writer{
		s3client: s3client,
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (w S3Writer) WriteDeliveryFailure(ctx context.Context, failure entity.DeliveryError, delivery entity.Delivery) error {
	key, err := w.computeObjectKey(failure)
	if err != nil {
		return fmt.Errorf("failed to compute object key: %w", err)
	}

	obj := DeliveryFailure{
		Context: Context{
			Branch:   version.Branch,
			Revision: version.Revision,
			Time:     failure.Timestamp,
			Host:     w.hostname,
		},
		Subscription: Subscription{
			Handle: failure.Handle,
			URL:    failure.URL,
		},
		Event:    delivery.Event,
		Payload:  delivery.Body,
		Attempts: failure.Attempts,
		Error:    failure.Error,
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery failure: %w", err)
	}

	contentType := "application/json"

	_, err = w.s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to write in s3: %w", err)
	}

	return nil
}

func (w S3Writer) computeObjectKey(failure entity.DeliveryError) (string, error) {
	if failure.Handle == "" || failure.EventID == "" {
		return "", errMissingIdentifier
	}

	ts := failure.Timestamp.UTC()

	template := strings.NewReplacer(
		"<prefix>", w.prefix,
		"<year>", fmt.Sprintf("%04d", ts.Year()),
		"<month>", fmt.Sprintf("%02d", ts.Month()),
		"<day>", fmt.Sprintf("%02d", ts.Day()),
		"<handle>", failure.Handle,
		"<event>", failure.EventID,
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/"), nil
}
