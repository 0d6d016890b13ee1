package adapter

import (
	"context"
	"time"
)

// ToolRunner invokes the external export CLI and returns its decoded JSON stdout.
// A nil result with a nil error means the tool printed nothing.
type ToolRunner interface {
	Run(ctx context.Context, args []string, timeout time.Duration) (any, error)
}

// ChatExporter is the pipeline-facing view of the export tool.
type ChatExporter interface {
	// ExportHistory writes the full history of chatID as JSON to outPath.
	ExportHistory(ctx context.Context, chatID int64, outPath string) error
	// ExportParticipants writes the member list of chatID as JSON to outPath.
	ExportParticipants(ctx context.Context, chatID int64, outPath string) error
}
