package audit

import (
	"context"

	"github.com/nayon117/custome-chat-server/pkg/log"
)

// Audit actions for the relay.
const (
	ActionSendMessage    = "chat.send_message"
	ActionAdminReply     = "chat.admin_reply"
	ActionGetHistory     = "chat.get_history"
	ActionGetAllMessages = "chat.get_all_messages"
	ActionDenied         = "chat.denied"
	ActionAdminLogin     = "chat.admin_login"
	ActionDisconnect     = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, identity string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldIdentity, identity).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, identity string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldIdentity, identity).
		Str(FieldDetail, detail).
		Msg(msg)
}
