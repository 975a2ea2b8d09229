package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/gateway"
)

// UpdateRouter fans inbound gateway updates out to the conversation and
// operator orchestrators. The split is by origin: private chats belong to
// clients, the support channel belongs to operators.
type UpdateRouter struct {
	conversation  *ConversationService
	operator      *OperatorService
	supportChatID int64
	logger        *zap.Logger
}

// NewUpdateRouter constructs the router.
func NewUpdateRouter(conversation *ConversationService, operator *OperatorService, supportChatID int64, logger *zap.Logger) *UpdateRouter {
	return &UpdateRouter{
		conversation:  conversation,
		operator:      operator,
		supportChatID: supportChatID,
		logger:        logger,
	}
}

// Route handles one update. Errors are logged, not returned: a bad update
// must never stall the poll loop.
func (r *UpdateRouter) Route(ctx context.Context, upd gateway.Update) {
	var err error
	switch {
	case upd.Kind == gateway.UpdateButton:
		if strings.HasPrefix(upd.Data, "op:") {
			err = r.operator.HandleButton(ctx, upd)
		} else {
			err = r.conversation.HandleButton(ctx, upd)
		}
	case upd.ChatID == r.supportChatID:
		if upd.Kind == gateway.UpdateText || upd.Kind == gateway.UpdateAttachment {
			err = r.operator.HandleThreadMessage(ctx, upd)
		}
	case upd.Kind == gateway.UpdateCommand:
		switch upd.Command {
		case "start":
			err = r.conversation.HandleStart(ctx, upd)
		default:
			err = r.conversation.HandleText(ctx, upd)
		}
	case upd.Kind == gateway.UpdateText:
		err = r.conversation.HandleText(ctx, upd)
	case upd.Kind == gateway.UpdateAttachment:
		err = r.conversation.HandleAttachment(ctx, upd)
	}
	if err != nil {
		r.logger.Error("update handling failed",
			zap.String("kind", string(upd.Kind)),
			zap.Int64("user_id", upd.UserID),
			zap.Int64("chat_id", upd.ChatID),
			zap.Error(err))
	}
}
