package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/repository"
)

const recentJobsLimit = 10

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (b *Bot) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    b.handleHelpCommand,
		"help":     b.handleHelpCommand,
		"run":      b.handleRunCommand,
		"cancel":   b.handleCancelCommand,
		"job":      b.handleJobCommand,
		"jobs":     b.handleJobsCommand,
		"monitor":  b.handleMonitorCommand,
		"settings": b.handleSettingsCommand,
	}
}

func (b *Bot) handleHelpCommand(_ context.Context, message *tgbotapi.Message) error {
	return b.reply(message, b.tr.T("help"))
}

// handleRunCommand posts a status message, records it as the request's indicator and enqueues the job.
func (b *Bot) handleRunCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 {
		return b.reply(message, b.tr.T("usage_run"))
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return b.reply(message, b.tr.T("invalid_chat_id"))
	}

	sub, err := b.monitor.Get(ctx, message.From.ID, chatID)
	if err != nil {
		return b.replyError(ctx, message, err, chatID)
	}

	requestID := uuid.NewString()
	status, err := b.api.Send(tgbotapi.NewMessage(message.Chat.ID, b.tr.T("run_enqueued", sub.ChatTitle, requestID)))
	if err != nil {
		return err
	}
	ind := &repository.StatusIndicator{ChatID: message.Chat.ID, MessageID: status.MessageID, ChatTitle: sub.ChatTitle}
	if err := b.indicators.Set(ctx, requestID, ind); err != nil {
		b.log.Warn().Err(err).Str("request_id", requestID).Msg("failed to record status indicator")
	}

	if _, err := b.jobs.EnqueueWithID(ctx, requestID, sub, true); err != nil {
		_ = b.indicators.Clear(ctx, requestID)
		text := b.tr.T("internal_error")
		if errors.Is(err, domain.ErrJobInProgress) {
			text = b.tr.T("run_in_progress", sub.ChatTitle)
		} else {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("manual enqueue failed")
		}
		_, editErr := b.api.Request(tgbotapi.NewEditMessageText(message.Chat.ID, status.MessageID, text))
		return editErr
	}
	return nil
}

func (b *Bot) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	requestID := strings.TrimSpace(message.CommandArguments())
	if requestID == "" {
		return b.reply(message, b.tr.T("usage_cancel"))
	}
	_, err := b.jobs.Cancel(ctx, message.From.ID, requestID)
	switch {
	case err == nil:
		return b.reply(message, b.tr.T("cancel_done", requestID))
	case errors.Is(err, domain.ErrJobFinished):
		return b.reply(message, b.tr.T("cancel_finished", requestID))
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(message, b.tr.T("job_not_found", requestID))
	}
	b.log.Error().Err(err).Str("request_id", requestID).Msg("cancel failed")
	return b.reply(message, b.tr.T("internal_error"))
}

func (b *Bot) handleJobCommand(ctx context.Context, message *tgbotapi.Message) error {
	requestID := strings.TrimSpace(message.CommandArguments())
	if requestID == "" {
		return b.reply(message, b.tr.T("usage_job"))
	}
	job, err := b.jobs.Get(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && job.UserID != message.From.ID) {
		return b.reply(message, b.tr.T("job_not_found", requestID))
	}
	if err != nil {
		b.log.Error().Err(err).Str("request_id", requestID).Msg("job lookup failed")
		return b.reply(message, b.tr.T("internal_error"))
	}

	text := b.tr.T("job_status", job.RequestID, job.ChatTitle, job.Status, job.UpdatedAt.Format(time.RFC3339))
	if msg := failureText(job); msg != "" {
		text += "\n" + b.tr.T("job_error", msg)
	}
	return b.reply(message, text)
}

func (b *Bot) handleJobsCommand(ctx context.Context, message *tgbotapi.Message) error {
	jobs, err := b.jobs.ListRecent(ctx, message.From.ID, recentJobsLimit)
	if err != nil {
		b.log.Error().Err(err).Msg("listing jobs failed")
		return b.reply(message, b.tr.T("internal_error"))
	}
	if len(jobs) == 0 {
		return b.reply(message, b.tr.T("jobs_empty"))
	}
	lines := []string{b.tr.T("jobs_header")}
	for _, j := range jobs {
		lines = append(lines, b.tr.T("jobs_line", j.RequestID, j.Status, j.ChatTitle))
	}
	return b.reply(message, strings.Join(lines, "\n"))
}

// handleMonitorCommand dispatches /monitor add|list|remove|prompt|pause|resume.
func (b *Bot) handleMonitorCommand(ctx context.Context, message *tgbotapi.Message) error {
	sub, rest, _ := strings.Cut(strings.TrimSpace(message.CommandArguments()), " ")
	rest = strings.TrimSpace(rest)
	userID := message.From.ID

	switch sub {
	case "list":
		return b.sendMonitorList(ctx, message)
	case "add":
		idStr, tail, _ := strings.Cut(rest, " ")
		chatID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return b.reply(message, b.tr.T("invalid_chat_id"))
		}
		title, prompt, _ := strings.Cut(tail, "|")
		s, err := b.monitor.Add(ctx, userID, chatID, title, prompt)
		if err != nil {
			return b.replyError(ctx, message, err, chatID)
		}
		return b.reply(message, b.tr.T("monitor_added", s.ChatTitle, s.ChatID))
	case "remove", "pause", "resume", "prompt":
		idStr, tail, _ := strings.Cut(rest, " ")
		chatID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return b.reply(message, b.tr.T("invalid_chat_id"))
		}
		key := "monitor_" + sub + "d"
		switch sub {
		case "remove":
			err = b.monitor.Remove(ctx, userID, chatID)
		case "pause":
			err = b.monitor.Pause(ctx, userID, chatID)
		case "resume":
			err = b.monitor.Resume(ctx, userID, chatID)
		case "prompt":
			key = "monitor_prompt_updated"
			err = b.monitor.UpdatePrompt(ctx, userID, chatID, tail)
		}
		if err != nil {
			return b.replyError(ctx, message, err, chatID)
		}
		return b.reply(message, b.tr.T(key, chatID))
	}
	return b.reply(message, b.tr.T("usage_monitor"))
}

func (b *Bot) sendMonitorList(ctx context.Context, message *tgbotapi.Message) error {
	subs, err := b.monitor.List(ctx, message.From.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("listing subscriptions failed")
		return b.reply(message, b.tr.T("internal_error"))
	}
	if len(subs) == 0 {
		return b.reply(message, b.tr.T("monitor_list_empty"))
	}
	lines := []string{b.tr.T("monitor_list_header")}
	for _, s := range subs {
		suffix := ""
		if !s.IsActive {
			suffix = b.tr.T("monitor_paused_suffix")
		}
		lines = append(lines, b.tr.T("monitor_list_line", s.ChatTitle, s.ChatID, suffix))
	}
	return b.reply(message, strings.Join(lines, "\n"))
}

func (b *Bot) handleSettingsCommand(ctx context.Context, message *tgbotapi.Message) error {
	prompt := strings.TrimSpace(message.CommandArguments())
	if prompt == "" {
		current, err := b.monitor.DefaultPrompt(ctx, message.From.ID)
		if err != nil {
			b.log.Error().Err(err).Msg("reading settings failed")
			return b.reply(message, b.tr.T("internal_error"))
		}
		return b.reply(message, b.tr.T("settings_current", current))
	}
	if err := b.monitor.SetDefaultPrompt(ctx, message.From.ID, prompt); err != nil {
		b.log.Error().Err(err).Msg("saving settings failed")
		return b.reply(message, b.tr.T("internal_error"))
	}
	return b.reply(message, b.tr.T("settings_updated"))
}

// replyError maps use case errors on chatID to a user message.
func (b *Bot) replyError(_ context.Context, message *tgbotapi.Message, err error, chatID int64) error {
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return b.reply(message, b.tr.T("monitor_not_found", chatID))
	case errors.Is(err, domain.ErrAlreadyExists):
		return b.reply(message, b.tr.T("monitor_exists", chatID))
	case errors.Is(err, domain.ErrInvalidArgument):
		return b.reply(message, b.tr.T("usage_monitor"))
	}
	b.log.Error().Err(err).Int64("chat_id", chatID).Msg("command failed")
	return b.reply(message, b.tr.T("internal_error"))
}

// failureText extracts the stored error of a failed or cancelled job.
func failureText(job *model.Job) string {
	if job.Status != model.JobStatusFailed && job.Status != model.JobStatusCancelled {
		return ""
	}
	var fd model.FailureDetail
	if err := json.Unmarshal(job.Detail, &fd); err != nil {
		return ""
	}
	return fd.Error
}
