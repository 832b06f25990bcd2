package actors

import (
	stdctx "context"
	"log"
	"time"

	"pondside/internal/database"
	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for message store operations
type (
	AppendMessageMsg struct {
		SenderID       uuid.UUID
		ConversationID uuid.UUID
		Content        string
	}

	EditMessageMsg struct {
		MessageID        uuid.UUID
		NewContent       string
		RequestingUserID uuid.UUID
	}

	DeleteMessageMsg struct {
		MessageID        uuid.UUID
		RequestingUserID uuid.UUID
	}

	ReadByAllMsg struct {
		MessageID uuid.UUID
	}

	GetMessageMsg struct {
		MessageID uuid.UUID
	}

	GetHistoryMsg struct {
		ConversationID uuid.UUID
	}
)

// DeleteMessageResult reports what was removed so the caller can notify the
// conversation's rooms after the message itself is gone.
type DeleteMessageResult struct {
	MessageID      uuid.UUID
	ConversationID uuid.UUID
}

// MessageActor is the message store: it appends, edits and deletes messages
// and answers the read-by-all predicate. It does not verify sender
// membership; the gateway gates that before anything reaches this actor.
type MessageActor struct {
	db      database.DBAdapter
	metrics *utils.MetricsCollector
}

func NewMessageActor(metrics *utils.MetricsCollector, db database.DBAdapter) actor.Actor {
	return &MessageActor{
		db:      db,
		metrics: metrics,
	}
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("MessageActor started")

	case *actor.Stopping:
		log.Printf("MessageActor stopping")

	case *AppendMessageMsg:
		a.handleAppend(context, msg)

	case *EditMessageMsg:
		a.handleEdit(context, msg)

	case *DeleteMessageMsg:
		a.handleDelete(context, msg)

	case *ReadByAllMsg:
		a.handleReadByAll(context, msg)

	case *GetMessageMsg:
		a.handleGetMessage(context, msg)

	case *GetHistoryMsg:
		a.handleGetHistory(context, msg)
	}
}

func (a *MessageActor) handleAppend(context actor.Context, msg *AppendMessageMsg) {
	startTime := time.Now()

	if msg.Content == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "message content is required", nil))
		return
	}

	newMessage := &models.Message{
		ID:             uuid.New(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      time.Now(),
		ReadUserIDs:    []uuid.UUID{},
	}

	if err := a.db.SaveMessage(stdctx.Background(), newMessage); err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("append_message", time.Since(startTime))
	log.Printf("MessageActor: Message %s appended to conversation %s", newMessage.ID, msg.ConversationID)
	context.Respond(newMessage)
}

func (a *MessageActor) handleEdit(context actor.Context, msg *EditMessageMsg) {
	startTime := time.Now()

	if msg.NewContent == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "message content is required", nil))
		return
	}

	ctx := stdctx.Background()
	existing, err := a.db.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	if existing.SenderID != msg.RequestingUserID {
		context.Respond(utils.NewUnauthorizedError("only the sender can edit a message"))
		return
	}

	if err := a.db.UpdateMessageContent(ctx, msg.MessageID, msg.NewContent); err != nil {
		context.Respond(toAppError(err))
		return
	}

	existing.Content = msg.NewContent
	a.metrics.AddOperationLatency("edit_message", time.Since(startTime))
	context.Respond(existing)
}

func (a *MessageActor) handleDelete(context actor.Context, msg *DeleteMessageMsg) {
	startTime := time.Now()

	ctx := stdctx.Background()
	existing, err := a.db.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	if existing.SenderID != msg.RequestingUserID {
		context.Respond(utils.NewUnauthorizedError("only the sender can delete a message"))
		return
	}

	if err := a.db.DeleteMessage(ctx, msg.MessageID); err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("delete_message", time.Since(startTime))
	log.Printf("MessageActor: Message %s deleted from conversation %s", msg.MessageID, existing.ConversationID)
	context.Respond(&DeleteMessageResult{
		MessageID:      msg.MessageID,
		ConversationID: existing.ConversationID,
	})
}

func (a *MessageActor) handleReadByAll(context actor.Context, msg *ReadByAllMsg) {
	ctx := stdctx.Background()
	existing, err := a.db.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	readByAll, err := isReadByAll(ctx, a.db, existing)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(readByAll)
}

func (a *MessageActor) handleGetMessage(context actor.Context, msg *GetMessageMsg) {
	existing, err := a.db.GetMessage(stdctx.Background(), msg.MessageID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(existing)
}

func (a *MessageActor) handleGetHistory(context actor.Context, msg *GetHistoryMsg) {
	messages, err := a.db.GetConversationMessages(stdctx.Background(), msg.ConversationID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(messages)
}

// isReadByAll evaluates the read-by-all predicate on demand against the
// conversation's current member set. Membership is taken at check time, so
// a member added after a message was sent makes that message unread again
// until the new member reads it.
func isReadByAll(ctx stdctx.Context, db database.DBAdapter, msg *models.Message) (bool, error) {
	memberIDs, err := db.GetConversationMemberIDs(ctx, msg.ConversationID)
	if err != nil {
		return false, err
	}
	readerIDs, err := db.GetMessageReaderIDs(ctx, msg.ID)
	if err != nil {
		return false, err
	}

	readers := make(map[uuid.UUID]bool, len(readerIDs))
	for _, userID := range readerIDs {
		readers[userID] = true
	}
	for _, userID := range memberIDs {
		if !readers[userID] {
			return false, nil
		}
	}
	return len(memberIDs) > 0, nil
}
