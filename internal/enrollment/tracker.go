package enrollment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo"
)

const DefaultListLimit = 100

type CreateRequest struct {
	Platform   entity.Platform `json:"platform"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Hostname   string          `json:"hostname,omitempty"`
	Contact    string          `json:"contact,omitempty"`
}

type ListFilter struct {
	CampaignID string
	Platform   entity.Platform
	Status     entity.EnrollmentStatus
	Limit      int
}

func (f ListFilter) match(r *entity.EnrollmentRequest) bool {
	if f.CampaignID != "" && r.CampaignID != f.CampaignID {
		return false
	}

	if f.Platform != "" && r.Platform != f.Platform {
		return false
	}

	if f.Status != "" && r.Status != f.Status {
		return false
	}

	return true
}

// Tracker keeps enrollment requests. Every mutation is persisted before being visible.
type Tracker struct {
	docs           repo.DocumentStore[entity.EnrollmentRequest]
	agents         repo.AgentRegistry
	bootstrap      Bootstrap
	defaultContact string
	clock          clockwork.Clock

	lock     sync.RWMutex
	requests map[string]*entity.EnrollmentRequest
	locks    map[string]*sync.Mutex

	logger *logr.Logger
}

func NewTracker(docs repo.DocumentStore[entity.EnrollmentRequest], agents repo.AgentRegistry, bootstrap Bootstrap, defaultContact string) *Tracker {
	if defaultContact == "" {
		defaultContact = "http"
	}

	return &Tracker{
		docs:           docs,
		agents:         agents,
		bootstrap:      bootstrap,
		defaultContact: defaultContact,
		clock:          clockwork.NewRealClock(),
		requests:       map[string]*entity.EnrollmentRequest{},
		locks:          map[string]*sync.Mutex{},
	}
}

func (t *Tracker) WithLogger(logger logr.Logger) *Tracker {
	t.logger = &logger

	return t
}

func (t *Tracker) WithClock(clock clockwork.Clock) *Tracker {
	t.clock = clock

	return t
}

func (t *Tracker) Load(ctx context.Context) error {
	docs, err := t.docs.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enrollment requests: %w", err)
	}

	requests := make(map[string]*entity.EnrollmentRequest, len(docs))
	locks := make(map[string]*sync.Mutex, len(docs))

	for id, doc := range docs {
		r := doc.Clone()
		r.ID = id

		requests[id] = &r
		locks[id] = &sync.Mutex{}
	}

	t.lock.Lock()
	t.requests = requests
	t.locks = locks
	t.lock.Unlock()

	t.logInfo(0, "Enrollment requests loaded", "count", len(requests))

	return nil
}

func (t *Tracker) Create(ctx context.Context, req CreateRequest) (entity.EnrollmentRequest, error) {
	if !req.Platform.Valid() {
		return entity.EnrollmentRequest{}, common.NewInvalidArgumentError("unsupported platform %q, expected windows, linux or darwin", req.Platform)
	}

	if req.CampaignID != "" && !entity.ValidCampaignID(req.CampaignID) {
		return entity.EnrollmentRequest{}, common.NewInvalidArgumentError("invalid campaign id %q", req.CampaignID)
	}

	if req.Hostname != "" && !hostnamePattern.MatchString(req.Hostname) {
		return entity.EnrollmentRequest{}, common.NewInvalidArgumentError("invalid hostname %q", req.Hostname)
	}

	err := validateTags(req.Tags)
	if err != nil {
		return entity.EnrollmentRequest{}, err
	}

	contact := strings.TrimSpace(req.Contact)
	if contact == "" {
		contact = t.defaultContact
	}

	if !groupPattern.MatchString(contact) {
		return entity.EnrollmentRequest{}, common.NewInvalidArgumentError("invalid contact %q", contact)
	}

	id := uuid.NewString()
	tags := agentTags(req.Tags, req.CampaignID, id)

	command, err := t.bootstrap.Render(req.Platform, tags)
	if err != nil {
		return entity.EnrollmentRequest{}, err
	}

	now := t.clock.Now().UTC()

	r := entity.EnrollmentRequest{
		ID:               id,
		Platform:         req.Platform,
		CampaignID:       req.CampaignID,
		Tags:             tags,
		Hostname:         req.Hostname,
		Contact:          contact,
		Status:           entity.EnrollmentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		BootstrapCommand: command,
		DownloadURL:      t.bootstrap.DownloadURL(),
		ServerURL:        t.bootstrap.ServerURL(),
	}

	idLock := &sync.Mutex{}
	idLock.Lock()
	defer idLock.Unlock()

	t.lock.Lock()
	t.locks[id] = idLock
	t.lock.Unlock()

	err = t.docs.Put(ctx, id, r)
	if err != nil {
		t.lock.Lock()
		delete(t.locks, id)
		t.lock.Unlock()

		return entity.EnrollmentRequest{}, fmt.Errorf("failed to persist enrollment request %s: %w", id, err)
	}

	t.lock.Lock()
	t.requests[id] = &r
	t.lock.Unlock()

	t.logInfo(0, "Enrollment request created", "requestID", id, "platform", req.Platform, "campaignID", req.CampaignID)

	return r.Clone(), nil
}

func (t *Tracker) Get(id string) (entity.EnrollmentRequest, error) {
	t.lock.RLock()
	r, ok := t.requests[id]
	t.lock.RUnlock()

	if !ok {
		return entity.EnrollmentRequest{}, common.NewNotFoundError("enrollment request", id)
	}

	return r.Clone(), nil
}

// List returns the matching requests, newest first. A zero limit means DefaultListLimit.
func (t *Tracker) List(filter ListFilter) []entity.EnrollmentRequest {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	t.lock.RLock()
	ret := make([]entity.EnrollmentRequest, 0, len(t.requests))

	for _, r := range t.requests {
		if filter.match(r) {
			ret = append(ret, r.Clone())
		}
	}
	t.lock.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID < ret[j].ID
		}

		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})

	if len(ret) > limit {
		ret = ret[:limit]
	}

	return ret
}

// UpdateStatus records the enrollment outcome, typically once the agent called back.
func (t *Tracker) UpdateStatus(ctx context.Context, id string, status entity.EnrollmentStatus, agentPaw string) (entity.EnrollmentRequest, error) {
	if !status.Valid() {
		return entity.EnrollmentRequest{}, common.NewInvalidArgumentError("unknown enrollment status %q", status)
	}

	t.lock.RLock()
	idLock, ok := t.locks[id]
	t.lock.RUnlock()

	if !ok {
		return entity.EnrollmentRequest{}, common.NewNotFoundError("enrollment request", id)
	}

	idLock.Lock()
	defer idLock.Unlock()

	t.lock.RLock()
	current, ok := t.requests[id]
	t.lock.RUnlock()

	if !ok {
		return entity.EnrollmentRequest{}, common.NewNotFoundError("enrollment request", id)
	}

	next := current.Clone()
	next.Status = status
	next.UpdatedAt = t.clock.Now().UTC()

	if agentPaw != "" {
		next.AgentPaw = agentPaw
	}

	err := t.docs.Put(ctx, id, next)
	if err != nil {
		return entity.EnrollmentRequest{}, fmt.Errorf("failed to persist enrollment request %s: %w", id, err)
	}

	t.lock.Lock()
	t.requests[id] = &next
	t.lock.Unlock()

	t.logInfo(1, "Enrollment request updated", "requestID", id, "status", status, "paw", agentPaw)

	return next.Clone(), nil
}

// AgentsForCampaign queries the agent registry on every call and keeps agents tagged with the campaign.
func (t *Tracker) AgentsForCampaign(ctx context.Context, campaignID string) ([]entity.Agent, error) {
	if campaignID == "" {
		return nil, common.NewInvalidArgumentError("campaign id is required")
	}

	agents, err := t.agents.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	tag := CampaignTag(campaignID)
	ret := []entity.Agent{}

	for _, agent := range agents {
		if agent.HasTag(tag) {
			ret = append(ret, agent)
		}
	}

	return ret, nil
}

func (t *Tracker) logInfo(level int, msg string, keysAndValues ...any) {
	if t.logger == nil {
		return
	}

	t.logger.V(level).Info(msg, keysAndValues...)
}
