//go:build !integration

package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Bot API ---

type fakeAPI struct {
	mu         sync.Mutex
	sent       []tgbotapi.Chattable
	requests   []tgbotapi.Chattable
	nextID     int
	requestErr error
	updates    chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

// texts returns the text of every plain message sent.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func command(userID int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

// --- use cases ---

type enqueueCall struct {
	requestID string
	chatID    int64
	manual    bool
}

type fakeJobs struct {
	mu         sync.Mutex
	enqueued   []enqueueCall
	enqueueErr error
	cancelErr  error
	cancelled  []string
	jobs       map[string]*model.Job
}

func (f *fakeJobs) Enqueue(ctx context.Context, sub *model.Subscription, manual bool) (string, error) {
	return f.EnqueueWithID(ctx, "generated", sub, manual)
}

func (f *fakeJobs) EnqueueWithID(_ context.Context, requestID string, sub *model.Subscription, manual bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.enqueued = append(f.enqueued, enqueueCall{requestID, sub.ChatID, manual})
	return requestID, nil
}

func (f *fakeJobs) Cancel(_ context.Context, _ int64, requestID string) (*model.Job, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, requestID)
	return &model.Job{RequestID: requestID, Status: model.JobStatusCancelled}, nil
}

func (f *fakeJobs) Get(_ context.Context, requestID string) (*model.Job, error) {
	j, ok := f.jobs[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) ListRecent(_ context.Context, userID int64, _ int) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeMonitor struct {
	subs          map[int64]*model.Subscription
	defaultPrompt string
}

func (f *fakeMonitor) Add(_ context.Context, userID, chatID int64, title, prompt string) (*model.Subscription, error) {
	if _, ok := f.subs[chatID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	s, err := model.NewSubscription(userID, chatID, title, prompt)
	if err != nil {
		return nil, err
	}
	s.ID = int64(len(f.subs) + 1)
	f.subs[chatID] = s
	return s, nil
}

func (f *fakeMonitor) Get(_ context.Context, userID, chatID int64) (*model.Subscription, error) {
	s, ok := f.subs[chatID]
	if !ok || s.UserID != userID {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s, nil
}

func (f *fakeMonitor) List(_ context.Context, userID int64) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeMonitor) with(userID, chatID int64, fn func(*model.Subscription)) error {
	s, ok := f.subs[chatID]
	if !ok || s.UserID != userID {
		return domain.ErrSubscriptionNotFound
	}
	fn(s)
	return nil
}

func (f *fakeMonitor) Remove(_ context.Context, userID, chatID int64) error {
	return f.with(userID, chatID, func(*model.Subscription) { delete(f.subs, chatID) })
}

func (f *fakeMonitor) UpdatePrompt(_ context.Context, userID, chatID int64, prompt string) error {
	return f.with(userID, chatID, func(s *model.Subscription) { s.Prompt = strings.TrimSpace(prompt) })
}

func (f *fakeMonitor) Pause(_ context.Context, userID, chatID int64) error {
	return f.with(userID, chatID, func(s *model.Subscription) { s.IsActive = false })
}

func (f *fakeMonitor) Resume(_ context.Context, userID, chatID int64) error {
	return f.with(userID, chatID, func(s *model.Subscription) { s.IsActive = true })
}

func (f *fakeMonitor) DefaultPrompt(context.Context, int64) (string, error) {
	if f.defaultPrompt == "" {
		return model.FallbackPrompt, nil
	}
	return f.defaultPrompt, nil
}

func (f *fakeMonitor) SetDefaultPrompt(_ context.Context, _ int64, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return domain.ErrInvalidArgument
	}
	f.defaultPrompt = prompt
	return nil
}

// --- infra ---

type fakeIndicators struct {
	mu    sync.Mutex
	items map[string]*repository.StatusIndicator
}

func (f *fakeIndicators) Set(_ context.Context, id string, ind *repository.StatusIndicator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = ind
	return nil
}

func (f *fakeIndicators) Get(_ context.Context, id string) (*repository.StatusIndicator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeIndicators) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

var errBoom = errors.New("boom")
