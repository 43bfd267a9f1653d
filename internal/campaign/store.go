package campaign

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo"
)

// Publisher receives lifecycle events. Publish must not block on network I/O.
type Publisher interface {
	Publish(event entity.LifecycleEvent)
}

type CreateRequest struct {
	ID   string              `json:"id,omitempty"`
	Name string              `json:"name"`
	Mode entity.CampaignMode `json:"mode,omitempty"`
	Tags []string            `json:"tags,omitempty"`
}

// emission is the lifecycle event produced by a successful mutation.
type emission struct {
	exchange string
	queue    string
	data     map[string]interface{}
}

// Store is the source of truth for campaign state.
// Records are copy-on-write: a mutation works on a clone which replaces the record once persisted.
type Store struct {
	docs      repo.DocumentStore[entity.Campaign]
	publisher Publisher
	clock     clockwork.Clock

	lock      sync.RWMutex
	campaigns map[string]*entity.Campaign
	locks     map[string]*sync.Mutex

	logger *logr.Logger
}

func NewStore(docs repo.DocumentStore[entity.Campaign], publisher Publisher) *Store {
	return &Store{
		docs:      docs,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		campaigns: map[string]*entity.Campaign{},
		locks:     map[string]*sync.Mutex{},
	}
}

func (s *Store) WithLogger(logger logr.Logger) *Store {
	s.logger = &logger

	return s
}

func (s *Store) WithClock(clock clockwork.Clock) *Store {
	s.clock = clock

	return s
}

// Load replaces the in-memory state with the persisted document.
func (s *Store) Load(ctx context.Context) error {
	docs, err := s.docs.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load campaigns: %w", err)
	}

	campaigns := make(map[string]*entity.Campaign, len(docs))
	locks := make(map[string]*sync.Mutex, len(docs))

	for id, doc := range docs {
		c := normalize(doc)
		c.ID = id

		campaigns[id] = &c
		locks[id] = &sync.Mutex{}
	}

	s.lock.Lock()
	s.campaigns = campaigns
	s.locks = locks
	s.lock.Unlock()

	s.logInfo(0, "Campaigns loaded", "count", len(campaigns))

	return nil
}

func (s *Store) Create(ctx context.Context, req CreateRequest) (entity.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return entity.Campaign{}, common.NewInvalidArgumentError("campaign name is required")
	}

	mode := req.Mode
	if mode == "" {
		mode = entity.CampaignModeTest
	}

	if !mode.Valid() {
		return entity.Campaign{}, common.NewInvalidArgumentError("unknown campaign mode %q", mode)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	if !entity.ValidCampaignID(id) {
		return entity.Campaign{}, common.NewInvalidArgumentError("invalid campaign id %q, expected letters, digits, '_', '.' or '-'", id)
	}

	// Reserve the id: the lock entry exists before the record is visible.
	s.lock.Lock()
	if _, exists := s.locks[id]; exists {
		s.lock.Unlock()

		return entity.Campaign{}, fmt.Errorf("%w: campaign %q", common.ErrAlreadyExists, id)
	}

	idLock := &sync.Mutex{}
	idLock.Lock()
	defer idLock.Unlock()

	s.locks[id] = idLock
	s.lock.Unlock()

	now := s.clock.Now().UTC()

	c := entity.Campaign{
		ID:         id,
		Name:       name,
		Mode:       mode,
		Status:     entity.CampaignStatusCreated,
		Operations: []entity.OperationRef{},
		Agents:     []entity.AgentRef{},
		Errors:     []entity.ErrorRecord{},
		Timeline: []entity.TimelineEvent{
			{
				Timestamp:   now,
				Description: "Campaign created",
				Status:      entity.CampaignStatusCreated,
				Payload:     map[string]interface{}{"mode": string(mode)},
			},
		},
		Tags:      slices.Clone(req.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.docs.Put(ctx, id, c)
	if err != nil {
		s.lock.Lock()
		delete(s.locks, id)
		s.lock.Unlock()

		return entity.Campaign{}, fmt.Errorf("failed to persist campaign %s: %w", id, err)
	}

	s.lock.Lock()
	s.campaigns[id] = &c
	s.lock.Unlock()

	s.logInfo(1, "Campaign created", "campaignID", id, "mode", mode)

	s.publish(c, now, emission{
		exchange: entity.ExchangeCampaign,
		queue:    string(entity.CampaignStatusCreated),
		data:     map[string]interface{}{"name": name, "mode": string(mode), "status": string(c.Status)},
	})

	return c.Clone(), nil
}

func (s *Store) Get(id string) (entity.Campaign, error) {
	s.lock.RLock()
	c, ok := s.campaigns[id]
	s.lock.RUnlock()

	if !ok {
		return entity.Campaign{}, common.NewNotFoundError("campaign", id)
	}

	return c.Clone(), nil
}

// List returns every campaign, oldest first.
func (s *Store) List() []entity.Campaign {
	s.lock.RLock()
	records := make([]*entity.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		records = append(records, c)
	}
	s.lock.RUnlock()

	ret := make([]entity.Campaign, 0, len(records))
	for _, c := range records {
		ret = append(ret, c.Clone())
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID < ret[j].ID
		}

		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})

	return ret
}

func (s *Store) Transition(ctx context.Context, id string, to entity.CampaignStatus) (entity.Campaign, error) {
	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		from := c.Status

		err := ValidateTransition(from, to)
		if err != nil {
			return emission{}, err
		}

		c.Status = to
		c.Timeline = append(c.Timeline, entity.TimelineEvent{
			Timestamp:   now,
			Description: fmt.Sprintf("Status changed from %s to %s", from, to),
			Status:      to,
			Payload:     map[string]interface{}{"from": string(from), "to": string(to)},
		})

		return emission{
			exchange: entity.ExchangeCampaign,
			queue:    string(to),
			data:     map[string]interface{}{"name": c.Name, "from": string(from), "status": string(to)},
		}, nil
	})
}

func (s *Store) AddOperation(ctx context.Context, id string, operationID string, name string) (entity.Campaign, error) {
	if strings.TrimSpace(operationID) == "" {
		return entity.Campaign{}, common.NewInvalidArgumentError("operation id is required")
	}

	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		for _, op := range c.Operations {
			if op.ID == operationID {
				return emission{}, fmt.Errorf("%w: operation %q in campaign %q", common.ErrAlreadyExists, operationID, id)
			}
		}

		c.Operations = append(c.Operations, entity.OperationRef{
			ID:        operationID,
			Name:      name,
			Status:    entity.OperationStatusQueued,
			AddedAt:   now,
			UpdatedAt: now,
		})
		c.Timeline = append(c.Timeline, entity.TimelineEvent{
			Timestamp:   now,
			Description: fmt.Sprintf("Operation %s added", operationID),
			Payload:     map[string]interface{}{"operation_id": operationID, "name": name},
		})

		return emission{
			exchange: entity.ExchangeOperation,
			queue:    "added",
			data:     map[string]interface{}{"operation_id": operationID, "name": name},
		}, nil
	})
}

// UpdateOperation records the execution backend status of an operation attached to the campaign.
func (s *Store) UpdateOperation(ctx context.Context, id string, operationID string, status string) (entity.Campaign, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return entity.Campaign{}, common.NewInvalidArgumentError("operation status is required")
	}

	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		index := -1

		for i, op := range c.Operations {
			if op.ID == operationID {
				index = i

				break
			}
		}

		if index < 0 {
			return emission{}, common.NewNotFoundError("operation", operationID)
		}

		previous := c.Operations[index].Status

		c.Operations[index].Status = status
		c.Operations[index].UpdatedAt = now
		c.Timeline = append(c.Timeline, entity.TimelineEvent{
			Timestamp:   now,
			Description: fmt.Sprintf("Operation %s is %s", operationID, status),
			Payload:     map[string]interface{}{"operation_id": operationID, "from": previous, "to": status},
		})

		return emission{
			exchange: entity.ExchangeOperation,
			queue:    status,
			data:     map[string]interface{}{"operation_id": operationID, "name": c.Operations[index].Name, "status": status},
		}, nil
	})
}

// AddAgent is idempotent by paw: adding a known agent succeeds without any change or event.
func (s *Store) AddAgent(ctx context.Context, id string, agent entity.AgentRef) (entity.Campaign, error) {
	if strings.TrimSpace(agent.Paw) == "" {
		return entity.Campaign{}, common.NewInvalidArgumentError("agent paw is required")
	}

	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		if c.HasAgent(agent.Paw) {
			return emission{}, errUnchanged
		}

		if agent.EnrolledAt.IsZero() {
			agent.EnrolledAt = now
		}

		c.Agents = append(c.Agents, agent)
		c.Timeline = append(c.Timeline, entity.TimelineEvent{
			Timestamp:   now,
			Description: fmt.Sprintf("Agent %s enrolled", agent.Paw),
			Payload:     map[string]interface{}{"paw": agent.Paw, "hostname": agent.Hostname, "platform": agent.Platform},
		})

		return emission{
			exchange: entity.ExchangeAgent,
			queue:    "added",
			data:     map[string]interface{}{"paw": agent.Paw, "hostname": agent.Hostname, "platform": agent.Platform},
		}, nil
	})
}

func (s *Store) AddError(ctx context.Context, id string, phase string, message string, severity entity.Severity) (entity.Campaign, error) {
	if severity == "" {
		severity = entity.SeverityError
	}

	if !severity.Valid() {
		return entity.Campaign{}, common.NewInvalidArgumentError("unknown severity %q", severity)
	}

	if strings.TrimSpace(message) == "" {
		return entity.Campaign{}, common.NewInvalidArgumentError("error message is required")
	}

	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		c.Errors = append(c.Errors, entity.ErrorRecord{
			Timestamp: now,
			Phase:     phase,
			Message:   message,
			Severity:  severity,
		})

		return emission{
			exchange: entity.ExchangeCampaign,
			queue:    entity.QueueErrorRecorded,
			data:     map[string]interface{}{"phase": phase, "message": message, "severity": string(severity)},
		}, nil
	})
}

// SetReports merges report artifact references into the campaign.
func (s *Store) SetReports(ctx context.Context, id string, reports map[string]string) (entity.Campaign, error) {
	if len(reports) == 0 {
		return entity.Campaign{}, common.NewInvalidArgumentError("at least one report is required")
	}

	return s.mutate(ctx, id, func(c *entity.Campaign, now time.Time) (emission, error) {
		if c.Reports == nil {
			c.Reports = make(map[string]string, len(reports))
		}

		names := make([]string, 0, len(reports))

		for name, ref := range reports {
			c.Reports[name] = ref
			names = append(names, name)
		}

		sort.Strings(names)

		c.Timeline = append(c.Timeline, entity.TimelineEvent{
			Timestamp:   now,
			Description: "Reports updated",
			Payload:     map[string]interface{}{"reports": names},
		})

		return emission{
			exchange: entity.ExchangeCampaign,
			queue:    "reports",
			data:     map[string]interface{}{"reports": names},
		}, nil
	})
}

// errUnchanged lets a mutation succeed without persisting nor emitting anything.
var errUnchanged = errors.New("unchanged")

// mutate serializes mutations of one campaign. The clone is discarded when fn or the write fails.
func (s *Store) mutate(ctx context.Context, id string, fn func(c *entity.Campaign, now time.Time) (emission, error)) (entity.Campaign, error) {
	s.lock.RLock()
	idLock, ok := s.locks[id]
	s.lock.RUnlock()

	if !ok {
		return entity.Campaign{}, common.NewNotFoundError("campaign", id)
	}

	idLock.Lock()
	defer idLock.Unlock()

	s.lock.RLock()
	current, ok := s.campaigns[id]
	s.lock.RUnlock()

	if !ok {
		return entity.Campaign{}, common.NewNotFoundError("campaign", id)
	}

	next := current.Clone()
	now := s.clock.Now().UTC()

	e, err := fn(&next, now)
	if errors.Is(err, errUnchanged) {
		return next, nil
	}

	if err != nil {
		return entity.Campaign{}, err
	}

	next.UpdatedAt = now

	err = s.docs.Put(ctx, id, next)
	if err != nil {
		s.logError(err, "Failed to persist campaign, mutation discarded", "campaignID", id)

		return entity.Campaign{}, fmt.Errorf("failed to persist campaign %s: %w", id, err)
	}

	s.lock.Lock()
	s.campaigns[id] = &next
	s.lock.Unlock()

	s.logInfo(2, "Campaign updated", "campaignID", id, "exchange", e.exchange, "queue", e.queue)

	s.publish(next, now, e)

	return next.Clone(), nil
}

func (s *Store) publish(c entity.Campaign, now time.Time, e emission) {
	if s.publisher == nil {
		return
	}

	s.publisher.Publish(entity.LifecycleEvent{
		ID:         uuid.NewString(),
		Exchange:   e.exchange,
		Queue:      e.queue,
		CampaignID: c.ID,
		Data:       e.data,
		Timestamp:  now,
	})
}

func normalize(c entity.Campaign) entity.Campaign {
	if c.Operations == nil {
		c.Operations = []entity.OperationRef{}
	}

	if c.Agents == nil {
		c.Agents = []entity.AgentRef{}
	}

	if c.Errors == nil {
		c.Errors = []entity.ErrorRecord{}
	}

	if c.Timeline == nil {
		c.Timeline = []entity.TimelineEvent{}
	}

	return c
}

func (s *Store) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}

func (s *Store) logError(err error, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Error(err, msg, keysAndValues...)
}
