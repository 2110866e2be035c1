package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes outcomes to the structured log. Used when no Redis is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyTransferOutcome(_ context.Context, ownerHandle string, transferID int64, status, reason string) error {
	n.logger.Info("transfer outcome",
		zap.String("owner", ownerHandle),
		zap.Int64("transfer_id", transferID),
		zap.String("status", status),
		zap.String("reason", reason),
	)
	return nil
}

func (n *LogNotifier) NotifyBalanceOutcome(_ context.Context, ownerHandle, status, detail string) error {
	n.logger.Info("balance outcome",
		zap.String("owner", ownerHandle),
		zap.String("status", status),
		zap.String("detail", detail),
	)
	return nil
}

// Fallback tries the primary notifier and logs through the secondary when it fails.
type Fallback struct {
	Primary   Notifier
	Secondary Notifier
}

func (f Fallback) NotifyTransferOutcome(ctx context.Context, ownerHandle string, transferID int64, status, reason string) error {
	err := f.Primary.NotifyTransferOutcome(ctx, ownerHandle, transferID, status, reason)
	if err == nil {
		return nil
	}
	if ferr := f.Secondary.NotifyTransferOutcome(ctx, ownerHandle, transferID, status, reason); ferr != nil {
		return ferr
	}
	return err
}

func (f Fallback) NotifyBalanceOutcome(ctx context.Context, ownerHandle, status, detail string) error {
	err := f.Primary.NotifyBalanceOutcome(ctx, ownerHandle, status, detail)
	if err == nil {
		return nil
	}
	if ferr := f.Secondary.NotifyBalanceOutcome(ctx, ownerHandle, status, detail); ferr != nil {
		return ferr
	}
	return err
}
