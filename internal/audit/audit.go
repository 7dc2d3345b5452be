package audit

import (
	"context"

	"github.com/poornimax/crushline/pkg/log"
)

// Audit actions.
const (
	ActionCrushSend      = "crush.send"
	ActionCrushWithdraw  = "crush.withdraw"
	ActionChatSend       = "chat.send"
	ActionChatClear      = "chat.clear"
	ActionChatConnect    = "chat.connect"
	ActionChatDisconnect = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, peerID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldPeerID, peerID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, userID, peerID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldPeerID, peerID).
		Str(FieldDetail, detail).
		Msg(msg)
}
