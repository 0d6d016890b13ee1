//go:build !integration

package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
)

const (
	testHistory = `{"messages":[
  {"id": 1, "text": "hello   world"},
  {"id": 5, "text": "see https://example.com now @bob"},
  {"id": 3, "service": true, "text": "joined the group"},
  {"id": 4, "text": "okay"}
]}`
	testParticipants = `{"users":[
  {"id": 1, "username": "alice", "first_name": "Alice", "last_name": null},
  {"id": 2, "username": null, "first_name": "Bob", "last_name": "B"}
]}`
)

type harness struct {
	proc     *JobProcessor
	jobs     *fakeJobRepo
	subs     *fakeSubRepo
	settings *fakeSettingsRepo
	exporter *fakeExporter
	llm      *fakeSummarizer
	pub      *recordingPublisher
	job      *model.Job
	base     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sub := &model.Subscription{ID: 3, UserID: 10, ChatID: -100, ChatTitle: "Go Chat", IsActive: true}
	h := &harness{
		jobs:     newFakeJobRepo(),
		subs:     newFakeSubRepo(sub),
		settings: &fakeSettingsRepo{settings: map[int64]*model.UserSettings{}},
		exporter: &fakeExporter{historyJSON: testHistory, participantsJSON: testParticipants},
		llm:      &fakeSummarizer{summary: "the summary"},
		pub:      &recordingPublisher{},
		base:     t.TempDir(),
	}
	h.proc = NewJobProcessor(h.jobs, h.subs, h.settings, h.exporter, h.llm, h.pub, h.base, 2048, newTestLogger())

	job, err := model.NewJob("req-1", sub, true)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	h.jobs.add(job)
	claimed, err := h.jobs.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	h.job = claimed
	return h
}

func assertLegalSequence(t *testing.T, seq []model.JobStatus) {
	t.Helper()
	for i := 0; i+1 < len(seq); i++ {
		if !model.CanTransition(seq[i], seq[i+1]) {
			t.Errorf("illegal transition %s -> %s in %v", seq[i], seq[i+1], seq)
		}
	}
}

func TestJobProcessor_Success(t *testing.T) {
	h := newHarness(t)
	h.settings.settings[10] = &model.UserSettings{UserID: 10, DefaultPrompt: "user default"}

	if err := h.proc.Process(context.Background(), h.job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	wantPub := []model.JobStatus{
		model.JobStatusStarted,
		model.JobStatusExportingHistory,
		model.JobStatusExportingParticipants,
		model.JobStatusCallingLLM,
		model.JobStatusSuccess,
	}
	if got := h.pub.statuses(); !reflect.DeepEqual(got, wantPub) {
		t.Errorf("unexpected published statuses %v", got)
	}
	stored := h.jobs.history["req-1"]
	assertLegalSequence(t, stored)
	if stored[len(stored)-1] != model.JobStatusSuccess {
		t.Errorf("expected SUCCESS to be persisted, got %v", stored)
	}

	if h.llm.lastHistory != "hello world\nsee now\nokay" {
		t.Errorf("unexpected cleaned history %q", h.llm.lastHistory)
	}
	if h.llm.lastInstruction != "user default" {
		t.Errorf("expected the user default prompt, got %q", h.llm.lastInstruction)
	}

	ev := h.pub.last()
	dir := ChatDir(h.base, -100)
	if ev.Result == nil || ev.Result.UserID != 10 || ev.Result.ChatTitle != "Go Chat" {
		t.Fatalf("unexpected result detail %+v", ev.Result)
	}
	if ev.Result.SummaryPath != filepath.Join(dir, "summary.txt") || ev.Result.HistoryPath != filepath.Join(dir, "history_cleaned.txt") {
		t.Errorf("unexpected artifact paths %+v", ev.Result)
	}
	summary, _ := os.ReadFile(ev.Result.SummaryPath)
	if string(summary) != "the summary" {
		t.Errorf("unexpected summary file %q", summary)
	}
	participants, err := os.ReadFile(ev.Result.ParticipantsPath)
	if err != nil {
		t.Fatalf("expected participants file: %v", err)
	}
	if string(participants) != "1 alice Alice \n2  Bob B\n" {
		t.Errorf("unexpected participants file %q", participants)
	}
	if h.subs.watermarks[3] != 5 {
		t.Errorf("expected watermark 5, got %d", h.subs.watermarks[3])
	}
}

func TestJobProcessor_ParticipantsFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.exporter.participantsErr = &domain.ExecutionFailedError{ExitCode: 1, Stderr: "forbidden"}

	if err := h.proc.Process(context.Background(), h.job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := h.pub.statuses()
	want := []model.JobStatus{
		model.JobStatusStarted,
		model.JobStatusExportingHistory,
		model.JobStatusExportingParticipants,
		model.JobStatusParticipantsExportFailed,
		model.JobStatusCallingLLM,
		model.JobStatusSuccess,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected statuses %v", got)
	}
	if h.pub.events[3].Failure == nil || !strings.Contains(h.pub.events[3].Failure.Error, "forbidden") {
		t.Errorf("expected the soft failure to carry the error, got %+v", h.pub.events[3].Failure)
	}
	ev := h.pub.last()
	if ev.Result.ParticipantsPath != "" {
		t.Errorf("expected no participants artifact, got %q", ev.Result.ParticipantsPath)
	}
	if h.llm.lastInstruction != model.FallbackPrompt {
		t.Errorf("expected fallback prompt, got %q", h.llm.lastInstruction)
	}
}

func TestJobProcessor_HistoryFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.exporter.historyErr = &domain.ExecutionTimeoutError{Timeout: time.Second}

	err := h.proc.Process(context.Background(), h.job)
	if !errors.As(err, new(*domain.ExecutionTimeoutError)) {
		t.Fatalf("expected the export error, got %v", err)
	}
	if h.llm.calls != 0 {
		t.Error("expected no summarization after a failed export")
	}
	ev := h.pub.last()
	if ev.Status != model.JobStatusFailed || ev.Failure == nil {
		t.Fatalf("expected FAILED with detail, got %+v", ev)
	}
	if !strings.HasPrefix(ev.Failure.Error, "tdl export failed") || ev.Failure.UserID != 10 || ev.Failure.ChatID != -100 || ev.Failure.ChatTitle != "Go Chat" {
		t.Errorf("unexpected failure detail %+v", ev.Failure)
	}
	if h.jobs.statusOf("req-1") != model.JobStatusFailed {
		t.Error("expected FAILED to be persisted")
	}
	assertLegalSequence(t, h.jobs.history["req-1"])
}

func TestJobProcessor_SummarizationFailure(t *testing.T) {
	h := newHarness(t)
	h.llm.err = &domain.SummarizationError{Provider: "completion", StatusCode: 500, Err: errors.New("boom")}

	if err := h.proc.Process(context.Background(), h.job); err == nil {
		t.Fatal("expected an error")
	}
	ev := h.pub.last()
	if ev.Status != model.JobStatusFailed || !strings.HasPrefix(ev.Failure.Error, "LLM failed") {
		t.Errorf("unexpected final event %+v", ev)
	}
	if _, err := os.Stat(filepath.Join(ChatDir(h.base, -100), "summary.txt")); !os.IsNotExist(err) {
		t.Error("expected no summary artifact")
	}
}

func TestJobProcessor_MissingSubscription(t *testing.T) {
	h := newHarness(t)
	delete(h.subs.subs, 3)

	err := h.proc.Process(context.Background(), h.job)
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if h.exporter.historyCalls != 0 {
		t.Error("expected no export for a missing subscription")
	}
	if got := h.pub.statuses(); !reflect.DeepEqual(got, []model.JobStatus{model.JobStatusStarted, model.JobStatusFailed}) {
		t.Errorf("unexpected statuses %v", got)
	}
}

func TestJobProcessor_StopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	h.exporter.onHistory = func() {
		_ = h.jobs.UpdateStatus(context.Background(), nil, "req-1", model.JobStatusCancelled, nil)
	}

	err := h.proc.Process(context.Background(), h.job)
	if !errors.Is(err, domain.ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
	if h.llm.calls != 0 {
		t.Error("expected no summarization after cancel")
	}
	if h.jobs.statusOf("req-1") != model.JobStatusCancelled {
		t.Errorf("expected CANCELLED to stick, got %s", h.jobs.statusOf("req-1"))
	}
	for _, s := range h.pub.statuses() {
		if s == model.JobStatusFailed || s == model.JobStatusSuccess || s == model.JobStatusCallingLLM {
			t.Errorf("unexpected status %s published after cancel", s)
		}
	}
}

func TestJobProcessor_RecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.llm.panicWith = "nil map"

	err := h.proc.Process(context.Background(), h.job)
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Fatalf("expected an internal error, got %v", err)
	}
	if h.jobs.statusOf("req-1") != model.JobStatusFailed {
		t.Error("expected FAILED after a panic")
	}
	if ev := h.pub.last(); ev.Status != model.JobStatusFailed {
		t.Errorf("expected FAILED to be published, got %s", ev.Status)
	}
}

func TestJobProcessor_StartDrainsQueue(t *testing.T) {
	h := newHarness(t)
	sub := h.subs.subs[3]
	second, _ := model.NewJob("req-2", sub, false)
	h.jobs.add(second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(1, 1, newTestLogger())
	pool.Start(ctx)
	go h.proc.Start(ctx, pool, 10*time.Millisecond)

	deadline := time.After(5 * time.Second)
	for h.jobs.statusOf("req-2") != model.JobStatusSuccess {
		select {
		case <-deadline:
			t.Fatalf("job was not processed, status %s", h.jobs.statusOf("req-2"))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	pool.Stop()
}

func TestPool_SubmitWhenFull(t *testing.T) {
	pool := NewPool(1, 1, newTestLogger())
	noop := func(context.Context) error { return nil }
	if err := pool.Submit(noop); err != nil {
		t.Fatalf("expected first submit to queue, got %v", err)
	}
	if err := pool.Submit(noop); !errors.Is(err, domain.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if err := pool.Submit(nil); err == nil {
		t.Error("expected nil task to be rejected")
	}

	done := make(chan struct{})
	pool = NewPool(2, 4, newTestLogger())
	pool.Start(context.Background())
	_ = pool.Submit(func(context.Context) error { close(done); return errors.New("logged, not fatal") })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	pool.Stop()
}
