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

// Message types for read receipt operations
type (
	MarkReadMsg struct {
		MessageID uuid.UUID
		UserID    uuid.UUID
	}

	MarkConversationReadMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
	}
)

// MarkReadResult carries the receipt plus the derived facts the gateway
// needs to decide whether to broadcast a bluetick.
type MarkReadResult struct {
	Receipt        *models.ReadMessage
	Created        bool
	ReadByAll      bool
	ConversationID uuid.UUID
}

// MarkConversationReadResult lists the receipts created by a bulk read and
// the subset of message IDs that became read-by-all because of it.
type MarkConversationReadResult struct {
	Created        []*models.ReadMessage
	ReadByAllIDs   []uuid.UUID
	ConversationID uuid.UUID
}

// ReadReceiptActor tracks which users have read which messages and derives
// read-by-all transitions.
type ReadReceiptActor struct {
	db      database.DBAdapter
	metrics *utils.MetricsCollector
}

func NewReadReceiptActor(metrics *utils.MetricsCollector, db database.DBAdapter) actor.Actor {
	return &ReadReceiptActor{
		db:      db,
		metrics: metrics,
	}
}

func (a *ReadReceiptActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("ReadReceiptActor started")

	case *actor.Stopping:
		log.Printf("ReadReceiptActor stopping")

	case *MarkReadMsg:
		a.handleMarkRead(context, msg)

	case *MarkConversationReadMsg:
		a.handleMarkConversationRead(context, msg)
	}
}

func (a *ReadReceiptActor) handleMarkRead(context actor.Context, msg *MarkReadMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	message, err := a.db.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	receipt := &models.ReadMessage{
		MessageID: msg.MessageID,
		UserID:    msg.UserID,
		ReadAt:    time.Now(),
	}
	created, err := a.db.SaveReadMessage(ctx, receipt)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	readByAll, err := isReadByAll(ctx, a.db, message)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("mark_read", time.Since(startTime))
	context.Respond(&MarkReadResult{
		Receipt:        receipt,
		Created:        created,
		ReadByAll:      readByAll,
		ConversationID: message.ConversationID,
	})
}

func (a *ReadReceiptActor) handleMarkConversationRead(context actor.Context, msg *MarkConversationReadMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	created, err := a.db.MarkConversationRead(ctx, msg.UserID, msg.ConversationID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	// Only newly created receipts can flip a message to read-by-all, so the
	// bluetick candidates are exactly the created set.
	readByAllIDs := []uuid.UUID{}
	for _, receipt := range created {
		message, err := a.db.GetMessage(ctx, receipt.MessageID)
		if err != nil {
			context.Respond(toAppError(err))
			return
		}
		readByAll, err := isReadByAll(ctx, a.db, message)
		if err != nil {
			context.Respond(toAppError(err))
			return
		}
		if readByAll {
			readByAllIDs = append(readByAllIDs, receipt.MessageID)
		}
	}

	a.metrics.AddOperationLatency("mark_conversation_read", time.Since(startTime))
	log.Printf("ReadReceiptActor: User %s read %d new messages in conversation %s", msg.UserID, len(created), msg.ConversationID)
	context.Respond(&MarkConversationReadResult{
		Created:        created,
		ReadByAllIDs:   readByAllIDs,
		ConversationID: msg.ConversationID,
	})
}
