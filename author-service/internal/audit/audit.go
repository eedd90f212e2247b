package audit

import (
	"context"

	"github.com/weiawesome/wes-auction/pkg/log"
)

// Audit actions for author-service.
const (
	ActionFollow   = "author.follow"
	ActionUnfollow = "author.unfollow"
)

const FieldAction = "action"

// Log emits a structured audit entry for a follow state change.
// The author id comes from the context logger (see log.WithAuthor).
func Log(ctx context.Context, action string, userID uint, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Msg(msg)
}
