package tdl

import (
	"context"
	"strconv"
	"time"

	"telegram-insight-agent/internal/domain/ports/adapter"
)

var _ adapter.ChatExporter = (*Exporter)(nil)

// Exporter maps the pipeline's export steps onto tdl sub-commands.
type Exporter struct {
	runner  adapter.ToolRunner
	timeout time.Duration
}

func NewExporter(runner adapter.ToolRunner, timeout time.Duration) *Exporter {
	return &Exporter{runner: runner, timeout: timeout}
}

func (e *Exporter) ExportHistory(ctx context.Context, chatID int64, outPath string) error {
	_, err := e.runner.Run(ctx, HistoryArgs(chatID, outPath), e.timeout)
	return err
}

func (e *Exporter) ExportParticipants(ctx context.Context, chatID int64, outPath string) error {
	_, err := e.runner.Run(ctx, ParticipantsArgs(chatID, outPath), e.timeout)
	return err
}

// HistoryArgs is `chat export -c <chat_id> --all -o <path>`.
func HistoryArgs(chatID int64, outPath string) []string {
	return []string{"chat", "export", "-c", strconv.FormatInt(chatID, 10), "--all", "-o", outPath}
}

// ParticipantsArgs is `chat users -c <chat_id> -o <path>`.
func ParticipantsArgs(chatID int64, outPath string) []string {
	return []string{"chat", "users", "-c", strconv.FormatInt(chatID, 10), "-o", outPath}
}
