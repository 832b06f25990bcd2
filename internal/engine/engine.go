package engine

import (
	"pondside/internal/database"
	"pondside/internal/engine/actors"
	"pondside/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between actors
type Engine struct {
	conversationActor *actor.PID
	messageActor      *actor.PID
	readReceiptActor  *actor.PID
}

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, db database.DBAdapter) *Engine {
	context := system.Root

	// Spawn conversation directory actor
	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(metrics, db)
	})
	conversationPID := context.Spawn(conversationProps)

	// Spawn message store actor
	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(metrics, db)
	})
	messagePID := context.Spawn(messageProps)

	// Spawn read receipt actor
	readReceiptProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewReadReceiptActor(metrics, db)
	})
	readReceiptPID := context.Spawn(readReceiptProps)

	return &Engine{
		conversationActor: conversationPID,
		messageActor:      messagePID,
		readReceiptActor:  readReceiptPID,
	}
}

// GetConversationActor returns the PID of the conversation directory actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversationActor
}

// GetMessageActor returns the PID of the message store actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}

// GetReadReceiptActor returns the PID of the read receipt actor
func (e *Engine) GetReadReceiptActor() *actor.PID {
	return e.readReceiptActor
}
