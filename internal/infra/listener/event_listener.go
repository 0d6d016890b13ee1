package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/metrics"
)

const (
	// MaxMessageRunes is the Telegram text message limit.
	MaxMessageRunes = 4096
	// maxErrorRunes bounds the error text shown to users; the full text stays in the job record.
	maxErrorRunes = 300
)

// Translator renders user-facing texts.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Listener turns status bus events into user-visible messages.
// Events are handled one at a time in arrival order.
type Listener struct {
	bus        adapter.StatusSubscriber
	out        adapter.DeliverySurface
	indicators repository.StatusIndicatorRepository
	tr         Translator
	log        *zerolog.Logger
}

func NewListener(bus adapter.StatusSubscriber, out adapter.DeliverySurface, indicators repository.StatusIndicatorRepository, tr Translator, logger *zerolog.Logger) *Listener {
	l := logger.With().Str("component", "EventListener").Logger()
	return &Listener{bus: bus, out: out, indicators: indicators, tr: tr, log: &l}
}

// Run consumes the bus until ctx is done. A failure while handling one event
// is logged and the loop moves on to the next.
func (l *Listener) Run(ctx context.Context) error {
	events, err := l.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to status bus: %w", err)
	}
	l.log.Info().Msg("listening for job status events")

	for ev := range events {
		if err := l.Handle(ctx, ev); err != nil {
			metrics.IncStatusHandled(string(ev.Status), "error")
			l.log.Error().Err(err).Str("request_id", ev.RequestID).Str("status", string(ev.Status)).Msg("failed to handle status event")
			continue
		}
		metrics.IncStatusHandled(string(ev.Status), "ok")
	}
	return ctx.Err()
}

// Handle applies one event to the delivery surface.
func (l *Listener) Handle(ctx context.Context, ev model.StatusEvent) error {
	ind, err := l.indicators.Get(ctx, ev.RequestID)
	if err != nil {
		// Progress edits are cosmetic; terminal deliveries still go out without an indicator.
		l.log.Warn().Err(err).Str("request_id", ev.RequestID).Msg("status indicator lookup failed")
		ind = nil
	}

	switch ev.Status {
	case model.JobStatusSuccess:
		err = l.deliverSummary(ctx, ev.Result)
		l.finish(ctx, ev.RequestID, ind, "status_success", titleOf(ev, ind))
	case model.JobStatusFailed:
		err = l.deliverFailure(ctx, ev, ind)
		l.finish(ctx, ev.RequestID, ind, "status_failed", titleOf(ev, ind))
	case model.JobStatusCancelled:
		l.finish(ctx, ev.RequestID, ind, "status_cancelled", titleOf(ev, ind))
	default:
		key, ok := progressKeys[ev.Status]
		if !ok || ind == nil {
			return nil
		}
		err = l.out.EditStatusMessage(ctx, ind.ChatID, ind.MessageID, l.tr.T(key, ind.ChatTitle))
	}
	return err
}

var progressKeys = map[model.JobStatus]string{
	model.JobStatusStarted:                  "status_started",
	model.JobStatusExportingHistory:         "status_exporting_history",
	model.JobStatusExportingParticipants:    "status_exporting_participants",
	model.JobStatusParticipantsExportFailed: "status_participants_failed",
	model.JobStatusCallingLLM:               "status_calling_llm",
}

func (l *Listener) deliverSummary(ctx context.Context, res *model.ResultDetail) error {
	if res == nil {
		return errors.New("success event without result")
	}
	summary, err := os.ReadFile(res.SummaryPath)
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}

	text := truncateRunes(l.tr.T("summary_header", res.ChatTitle, string(summary)), MaxMessageRunes)
	if err := l.out.SendText(ctx, res.UserID, text); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	if res.ParticipantsPath == "" {
		return nil
	}
	if _, err := os.Stat(res.ParticipantsPath); err != nil {
		l.log.Warn().Err(err).Str("path", res.ParticipantsPath).Msg("participants artifact missing")
		return nil
	}
	if err := l.out.SendFile(ctx, res.UserID, res.ParticipantsPath, l.tr.T("participants_caption")); err != nil {
		return fmt.Errorf("send participants: %w", err)
	}
	if err := os.Remove(res.ParticipantsPath); err != nil {
		l.log.Warn().Err(err).Str("path", res.ParticipantsPath).Msg("failed to remove participants artifact")
	}
	return nil
}

func (l *Listener) deliverFailure(ctx context.Context, ev model.StatusEvent, ind *repository.StatusIndicator) error {
	var recipient int64
	msg := "unknown error"
	if ev.Failure != nil {
		recipient = ev.Failure.UserID
		msg = shortError(ev.Failure.Error)
	}
	if recipient == 0 && ind != nil {
		recipient = ind.ChatID
	}
	if recipient == 0 {
		return errors.New("failure event without recipient")
	}
	return l.out.SendText(ctx, recipient, l.tr.T("job_failed", titleOf(ev, ind), msg))
}

// finish edits the indicator to its final text and forgets it.
func (l *Listener) finish(ctx context.Context, requestID string, ind *repository.StatusIndicator, key, title string) {
	if ind == nil {
		return
	}
	if err := l.out.EditStatusMessage(ctx, ind.ChatID, ind.MessageID, l.tr.T(key, title)); err != nil {
		l.log.Warn().Err(err).Str("request_id", requestID).Msg("failed to update status indicator")
	}
	if err := l.indicators.Clear(ctx, requestID); err != nil {
		l.log.Warn().Err(err).Str("request_id", requestID).Msg("failed to clear status indicator")
	}
}

func titleOf(ev model.StatusEvent, ind *repository.StatusIndicator) string {
	switch {
	case ev.Result != nil && ev.Result.ChatTitle != "":
		return ev.Result.ChatTitle
	case ev.Failure != nil && ev.Failure.ChatTitle != "":
		return ev.Failure.ChatTitle
	case ind != nil:
		return ind.ChatTitle
	}
	return ""
}

func shortError(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncateRunes(s, maxErrorRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
