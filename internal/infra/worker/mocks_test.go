//go:build !integration

package worker

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- job repository ---

type fakeJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	queue   []string
	history map[string][]model.JobStatus
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*model.Job{}, history: map[string][]model.JobStatus{}}
}

func (r *fakeJobRepo) add(j *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.RequestID] = &cp
	r.history[j.RequestID] = append(r.history[j.RequestID], j.Status)
	if j.Status == model.JobStatusEnqueued {
		r.queue = append(r.queue, j.RequestID)
	}
}

func (r *fakeJobRepo) Create(_ context.Context, _ repository.Tx, j *model.Job) error {
	r.add(j)
	return nil
}

func (r *fakeJobRepo) FindByRequestID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) ListRecentByUser(context.Context, repository.Tx, int64, int) ([]*model.Job, error) {
	return nil, nil
}

func (r *fakeJobRepo) ClaimNext(context.Context) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) > 0 {
		id := r.queue[0]
		r.queue = r.queue[1:]
		j := r.jobs[id]
		if j.Status != model.JobStatusEnqueued {
			continue
		}
		j.Status = model.JobStatusStarted
		r.history[id] = append(r.history[id], j.Status)
		cp := *j
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeJobRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.JobStatus, detail json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return domain.ErrJobFinished
	}
	j.Status = status
	j.Detail = detail
	r.history[id] = append(r.history[id], status)
	return nil
}

func (r *fakeJobRepo) HasLiveJob(_ context.Context, _ repository.Tx, subID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.SubscriptionID != nil && *j.SubscriptionID == subID && !j.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeJobRepo) statusOf(id string) model.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].Status
}

// --- subscription and settings repositories ---

type fakeSubRepo struct {
	mu         sync.Mutex
	subs       map[int64]*model.Subscription
	watermarks map[int64]int64
}

func newFakeSubRepo(subs ...*model.Subscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: map[int64]*model.Subscription{}, watermarks: map[int64]int64{}}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeSubRepo) Create(context.Context, repository.Tx, *model.Subscription) error { return nil }
func (r *fakeSubRepo) FindByID(_ context.Context, _ repository.Tx, id int64) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}
func (r *fakeSubRepo) FindByUserAndChat(context.Context, repository.Tx, int64, int64) (*model.Subscription, error) {
	return nil, domain.ErrNotFound
}
func (r *fakeSubRepo) ListByUser(context.Context, repository.Tx, int64) ([]*model.Subscription, error) {
	return nil, nil
}
func (r *fakeSubRepo) ListActiveUserIDs(context.Context, repository.Tx) ([]int64, error) {
	return nil, nil
}
func (r *fakeSubRepo) UpdatePrompt(context.Context, repository.Tx, int64, int64, string) error {
	return nil
}
func (r *fakeSubRepo) SetActive(context.Context, repository.Tx, int64, int64, bool) error {
	return nil
}
func (r *fakeSubRepo) SetWatermark(_ context.Context, _ repository.Tx, id int64, last int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watermarks[id] = last
	return nil
}
func (r *fakeSubRepo) Delete(context.Context, repository.Tx, int64, int64) error { return nil }

type fakeSettingsRepo struct {
	settings map[int64]*model.UserSettings
}

func (r *fakeSettingsRepo) Get(_ context.Context, _ repository.Tx, userID int64) (*model.UserSettings, error) {
	if s, ok := r.settings[userID]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}
func (r *fakeSettingsRepo) SetDefaultPrompt(context.Context, repository.Tx, int64, string) error {
	return nil
}

// --- adapters ---

type fakeExporter struct {
	historyJSON      string
	participantsJSON string
	historyErr       error
	participantsErr  error
	onHistory        func()
	historyCalls     int
}

func (e *fakeExporter) ExportHistory(_ context.Context, _ int64, out string) error {
	e.historyCalls++
	if e.onHistory != nil {
		e.onHistory()
	}
	if e.historyErr != nil {
		return e.historyErr
	}
	return os.WriteFile(out, []byte(e.historyJSON), 0o644)
}

func (e *fakeExporter) ExportParticipants(_ context.Context, _ int64, out string) error {
	if e.participantsErr != nil {
		return e.participantsErr
	}
	return os.WriteFile(out, []byte(e.participantsJSON), 0o644)
}

type fakeSummarizer struct {
	summary         string
	err             error
	calls           int
	lastHistory     string
	lastInstruction string
	panicWith       any
}

func (s *fakeSummarizer) Summarize(_ context.Context, history, instruction string, _ int) (string, error) {
	s.calls++
	s.lastHistory = history
	s.lastInstruction = instruction
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.summary, s.err
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

func (p *recordingPublisher) statuses() []model.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.JobStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

func (p *recordingPublisher) last() model.StatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}
