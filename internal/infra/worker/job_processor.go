package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/metrics"
)

// finalWriteTimeout bounds the terminal status write once the job context is gone.
const finalWriteTimeout = 5 * time.Second

type JobProcessor struct {
	jobs       repository.JobRepository
	subs       repository.SubscriptionRepository
	settings   repository.UserSettingsRepository
	exporter   adapter.ChatExporter
	summarizer adapter.Summarizer
	publisher  adapter.StatusPublisher
	outputBase string
	maxTokens  int
	log        *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	subs repository.SubscriptionRepository,
	settings repository.UserSettingsRepository,
	exporter adapter.ChatExporter,
	summarizer adapter.Summarizer,
	publisher adapter.StatusPublisher,
	outputBase string,
	maxTokens int,
	logger *zerolog.Logger,
) *JobProcessor {
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobs:       jobs,
		subs:       subs,
		settings:   settings,
		exporter:   exporter,
		summarizer: summarizer,
		publisher:  publisher,
		outputBase: outputBase,
		maxTokens:  maxTokens,
		log:        &l,
	}
}

// Start polls for ENQUEUED jobs and hands them to the pool until ctx is done.
// Claiming happens inside the task, so a job is only taken when a worker is free.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	p.log.Info().Dur("poll_interval", interval).Msg("Job processor started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			if !pool.Idle() {
				continue
			}
			if err := pool.Submit(p.processNext); err != nil && !errors.Is(err, domain.ErrQueueFull) {
				p.log.Error().Err(err).Msg("submit failed")
			}
		}
	}
}

// processNext claims one job and runs it. An empty queue is not an error.
func (p *JobProcessor) processNext(ctx context.Context) error {
	for {
		job, err := p.jobs.ClaimNext(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		_ = p.Process(ctx, job)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Process runs the export, clean and summarize pipeline for a claimed job.
// Every transition is written to the job record first and then published.
// The returned error is the failure cause, already recorded on the job;
// domain.ErrJobFinished means the job was cancelled while running.
func (p *JobProcessor) Process(ctx context.Context, job *model.Job) (err error) {
	log := p.log.With().
		Str("request_id", job.RequestID).
		Int64("chat_id", job.ChatID).
		Int64("user_id", job.UserID).
		Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("internal error: %v", r)
			p.fail(ctx, job, err.Error(), &log)
		}
		if job.Status.IsTerminal() {
			metrics.IncJobFinished(string(job.Status))
			log.Info().Str("status", string(job.Status)).Dur("duration", time.Since(start)).Msg("job finished")
		}
	}()

	if job.Status == model.JobStatusEnqueued {
		if err := p.transition(ctx, job, model.JobStatusStarted, nil, nil); err != nil {
			return p.stop(ctx, job, err, &log)
		}
	} else {
		p.publish(ctx, model.StatusEvent{RequestID: job.RequestID, Status: model.JobStatusStarted}, &log)
	}

	sub, err := p.loadSubscription(ctx, job)
	if err != nil {
		log.Warn().Err(err).Msg("subscription unavailable")
		p.fail(ctx, job, err.Error(), &log)
		return err
	}

	dir := ChatDir(p.outputBase, job.ChatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.fail(ctx, job, fmt.Sprintf("create output dir: %v", err), &log)
		return err
	}
	removeStale(dir)

	// History export is fatal on failure.
	if err := p.transition(ctx, job, model.JobStatusExportingHistory, nil, nil); err != nil {
		return p.stop(ctx, job, err, &log)
	}
	stepStart := time.Now()
	err = p.exporter.ExportHistory(ctx, job.ChatID, filepath.Join(dir, historyFile))
	metrics.ObserveJobStep("export_history", time.Since(stepStart), err == nil)
	if err != nil {
		log.Error().Err(err).Msg("history export failed")
		p.fail(ctx, job, fmt.Sprintf("tdl export failed: %v", err), &log)
		return err
	}

	stepStart = time.Now()
	history, lastID, err := cleanHistory(dir)
	metrics.ObserveJobStep("clean", time.Since(stepStart), err == nil)
	if err != nil {
		log.Error().Err(err).Msg("history cleaning failed")
		p.fail(ctx, job, err.Error(), &log)
		return err
	}

	// Participants are optional: a failure is reported and the pipeline continues.
	if err := p.transition(ctx, job, model.JobStatusExportingParticipants, nil, nil); err != nil {
		return p.stop(ctx, job, err, &log)
	}
	stepStart = time.Now()
	participantsPath, perr := p.exportParticipants(ctx, job.ChatID, dir)
	metrics.ObserveJobStep("export_participants", time.Since(stepStart), perr == nil)
	if perr != nil {
		log.Warn().Err(perr).Msg("participants export failed, continuing")
		failure := &model.FailureDetail{Error: perr.Error()}
		if err := p.transition(ctx, job, model.JobStatusParticipantsExportFailed, failure, nil); err != nil {
			return p.stop(ctx, job, err, &log)
		}
	}

	prompt := model.ResolvePrompt(sub, p.userSettings(ctx, job.UserID, &log))

	if err := p.transition(ctx, job, model.JobStatusCallingLLM, nil, nil); err != nil {
		return p.stop(ctx, job, err, &log)
	}
	stepStart = time.Now()
	summary, err := p.summarizer.Summarize(ctx, history, prompt, p.maxTokens)
	metrics.ObserveJobStep("summarize", time.Since(stepStart), err == nil)
	if err != nil {
		log.Error().Err(err).Msg("summarization failed")
		p.fail(ctx, job, fmt.Sprintf("LLM failed: %v", err), &log)
		return err
	}
	summaryPath, err := writeSummary(dir, summary)
	if err != nil {
		p.fail(ctx, job, err.Error(), &log)
		return err
	}

	result := &model.ResultDetail{
		UserID:           job.UserID,
		ChatID:           job.ChatID,
		ChatTitle:        job.ChatTitle,
		SummaryPath:      summaryPath,
		ParticipantsPath: participantsPath,
		HistoryPath:      filepath.Join(dir, historyCleanedFile),
	}
	if err := p.transition(ctx, job, model.JobStatusSuccess, nil, result); err != nil {
		return p.stop(ctx, job, err, &log)
	}

	if lastID > 0 {
		if err := p.subs.SetWatermark(ctx, nil, sub.ID, lastID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to store watermark")
		}
	}
	return nil
}

func (p *JobProcessor) loadSubscription(ctx context.Context, job *model.Job) (*model.Subscription, error) {
	if job.SubscriptionID == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	sub, err := p.subs.FindByID(ctx, nil, *job.SubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

func (p *JobProcessor) userSettings(ctx context.Context, userID int64, log *zerolog.Logger) *model.UserSettings {
	s, err := p.settings.Get(ctx, nil, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to load user settings, using fallback prompt")
		}
		return nil
	}
	return s
}

func (p *JobProcessor) exportParticipants(ctx context.Context, chatID int64, dir string) (string, error) {
	if err := p.exporter.ExportParticipants(ctx, chatID, filepath.Join(dir, participantsFile)); err != nil {
		return "", err
	}
	return renderParticipants(dir)
}

// transition advances the job, persists the new status and publishes it.
// A persisted status that is already terminal yields domain.ErrJobFinished.
func (p *JobProcessor) transition(ctx context.Context, job *model.Job, status model.JobStatus, failure *model.FailureDetail, result *model.ResultDetail) error {
	ev := model.StatusEvent{RequestID: job.RequestID, Status: status, Failure: failure, Result: result}
	if err := ev.Validate(); err != nil {
		return err
	}
	detail, err := ev.DetailJSON()
	if err != nil {
		return err
	}
	prev := job.Status
	if err := job.Advance(status, detail); err != nil {
		return err
	}
	if err := p.jobs.UpdateStatus(ctx, nil, job.RequestID, status, detail); err != nil {
		if errors.Is(err, domain.ErrJobFinished) {
			// Someone else (a cancel) finished it; reflect that locally.
			job.Status = model.JobStatusCancelled
			return err
		}
		job.Status = prev
		return fmt.Errorf("persist %s: %w", status, err)
	}
	p.publish(ctx, ev, p.log)
	return nil
}

func (p *JobProcessor) publish(ctx context.Context, ev model.StatusEvent, log *zerolog.Logger) {
	if err := p.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("status", string(ev.Status)).Msg("status publish failed")
	}
}

// fail records FAILED with the owner fields the listener needs to notify the user.
// It uses a detached context so shutdown does not leave the job mid-pipeline.
func (p *JobProcessor) fail(ctx context.Context, job *model.Job, msg string, log *zerolog.Logger) {
	if job.Status.IsTerminal() {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	failure := &model.FailureDetail{Error: msg, UserID: job.UserID, ChatID: job.ChatID, ChatTitle: job.ChatTitle}
	if err := p.transition(wctx, job, model.JobStatusFailed, failure, nil); err != nil && !errors.Is(err, domain.ErrJobFinished) {
		log.Error().Err(err).Msg("failed to record job failure")
	}
}

// stop handles a transition error: a cancelled job ends quietly, anything else fails the job.
func (p *JobProcessor) stop(ctx context.Context, job *model.Job, err error, log *zerolog.Logger) error {
	if errors.Is(err, domain.ErrJobFinished) {
		log.Info().Msg("job was finished elsewhere, stopping")
		return err
	}
	log.Error().Err(err).Msg("status transition failed")
	p.fail(ctx, job, err.Error(), log)
	return err
}

func removeStale(dir string) {
	for _, name := range []string{historyFile, historyCleanedFile, participantsFile, participantsTextFile, summaryFile} {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
