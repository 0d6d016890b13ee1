package adapter

import "context"

// DeliverySurface is how results and notifications reach the end user.
type DeliverySurface interface {
	SendText(ctx context.Context, recipient int64, text string) error
	SendFile(ctx context.Context, recipient int64, path, caption string) error
	EditStatusMessage(ctx context.Context, recipient int64, messageID int, text string) error
}
