package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	"github.com/valkey-io/valkey-go"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

// ValkeyStore keeps a collection in one hash, one field per record.
type ValkeyStore[T any] struct {
	client valkey.Client
	key    string
}

func NewValkeyStore[T any](client valkey.Client, key string) ValkeyStore[T] {
	return ValkeyStore[T]{
		client: client,
		key:    key,
	}
}

func (s ValkeyStore[T]) LoadAll(ctx context.Context) (map[string]T, error) {
	command := s.client.B().Hgetall().Key(s.key).Build()

	resp := s.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		return nil, s.wrapError(err, "failed to get all records of %s", s.key)
	}

	result, err := resp.AsStrMap()
	if err != nil {
		return nil, common.NewStorageError(fmt.Errorf("unexpected hgetall response type for %s: %w", s.key, err))
	}

	ret := make(map[string]T, len(result))

	for id, raw := range result {
		var doc T

		err := json.Unmarshal([]byte(raw), &doc)
		if err != nil {
			return nil, common.NewStorageError(fmt.Errorf("failed to unmarshal record %s of %s: %w", id, s.key, err))
		}

		ret[id] = doc
	}

	return ret, nil
}

func (s ValkeyStore[T]) Put(ctx context.Context, id string, doc T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return common.NewStorageError(fmt.Errorf("failed to marshal record %s: %w", id, err))
	}

	command := s.client.B().Hset().Key(s.key).FieldValue().FieldValue(id, string(data)).Build()

	err = s.client.Do(ctx, command).Error()
	if err != nil {
		return s.wrapError(err, "failed to set record %s of %s", id, s.key)
	}

	return nil
}

// Close is a no-op: the client is shared and closed by its owner.
func (s ValkeyStore[T]) Close(ctx context.Context) error {
	return nil
}

func (s ValkeyStore[T]) wrapError(err error, reason string, args ...interface{}) error {
	wrapped := fmt.Errorf("%s: %w", fmt.Sprintf(reason, args...), err)

	if isRetryable(err) {
		wrapped = pipeline.NewErrRetryableError(wrapped)
	}

	return common.NewStorageError(wrapped)
}

func isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Valkey specfic error
	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
