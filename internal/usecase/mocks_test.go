//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// mockTxManager runs fn without a transaction.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- jobs ---

type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	createErr error
	// finishOnUpdate simulates the worker finishing the job right before a status write.
	finishOnUpdate model.JobStatus
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.Job{}}
}

func (m *memJobRepo) Create(_ context.Context, _ repository.Tx, j *model.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.RequestID] = &cp
	return nil
}

func (m *memJobRepo) FindByRequestID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListRecentByUser(_ context.Context, _ repository.Tx, userID int64, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.UserID == userID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) ClaimNext(context.Context) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.JobStatus, detail json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.finishOnUpdate != "" {
		j.Status = m.finishOnUpdate
	}
	if j.Status.IsTerminal() {
		return domain.ErrJobFinished
	}
	j.Status = status
	j.Detail = detail
	return nil
}

func (m *memJobRepo) HasLiveJob(_ context.Context, _ repository.Tx, subID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.SubscriptionID != nil && *j.SubscriptionID == subID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.StatusEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.StatusEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// --- subscriptions ---

type memSubRepo struct {
	mu     sync.Mutex
	nextID int64
	subs   map[[2]int64]*model.Subscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: map[[2]int64]*model.Subscription{}}
}

func (m *memSubRepo) Create(_ context.Context, _ repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{s.UserID, s.ChatID}
	if _, ok := m.subs[key]; ok {
		return domain.ErrAlreadyExists
	}
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.subs[key] = &cp
	return nil
}

func (m *memSubRepo) FindByID(_ context.Context, _ repository.Tx, id int64) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) FindByUserAndChat(_ context.Context, _ repository.Tx, userID, chatID int64) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[[2]int64{userID, chatID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) ListByUser(_ context.Context, _ repository.Tx, userID int64) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memSubRepo) ListActiveUserIDs(context.Context, repository.Tx) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, s := range m.subs {
		if s.IsActive && !seen[s.UserID] {
			seen[s.UserID] = true
			out = append(out, s.UserID)
		}
	}
	return out, nil
}

func (m *memSubRepo) update(userID, chatID int64, fn func(*model.Subscription)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[[2]int64{userID, chatID}]
	if !ok {
		return domain.ErrNotFound
	}
	fn(s)
	return nil
}

func (m *memSubRepo) UpdatePrompt(_ context.Context, _ repository.Tx, userID, chatID int64, prompt string) error {
	return m.update(userID, chatID, func(s *model.Subscription) { s.Prompt = prompt })
}

func (m *memSubRepo) SetActive(_ context.Context, _ repository.Tx, userID, chatID int64, active bool) error {
	return m.update(userID, chatID, func(s *model.Subscription) { s.IsActive = active })
}

func (m *memSubRepo) SetWatermark(_ context.Context, _ repository.Tx, id int64, last int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.ID == id {
			s.LastProcessedMessageID = &last
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memSubRepo) Delete(_ context.Context, _ repository.Tx, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{userID, chatID}
	if _, ok := m.subs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.subs, key)
	return nil
}

// --- settings ---

type memSettingsRepo struct {
	mu    sync.Mutex
	items map[int64]*model.UserSettings
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{items: map[int64]*model.UserSettings{}}
}

func (m *memSettingsRepo) Get(_ context.Context, _ repository.Tx, userID int64) (*model.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSettingsRepo) SetDefaultPrompt(_ context.Context, _ repository.Tx, userID int64, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID] = &model.UserSettings{UserID: userID, DefaultPrompt: prompt}
	return nil
}
