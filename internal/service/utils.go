package service

import (
	"context"
	"time"
)

const notifyTimeout = 5 * time.Second

func clampPage(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// notifyContext detaches from the caller so a cancelled request does not drop the notification.
func notifyContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), notifyTimeout)
}
