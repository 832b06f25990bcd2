// Package gateway implements the real-time side of the conversation core:
// it consumes events from connected sessions, delegates to the directory,
// message store and read receipt actors, and fans results out to the rooms
// of every affected member.
package gateway

import (
	"encoding/json"
	"log"
	"time"

	"pondside/internal/engine"
	"pondside/internal/engine/actors"
	"pondside/internal/models"
	"pondside/internal/sanitize"
	"pondside/internal/utils"
	"pondside/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Gateway routes inbound client events to actors and broadcasts the
// results. Any precondition failure is converted to an `error` event sent
// only to the originating user's room; it never reaches other members and
// never tears down the session.
type Gateway struct {
	Context        *actor.RootContext
	Engine         *engine.Engine
	Hub            *websocket.Hub
	RequestTimeout time.Duration
}

func NewGateway(context *actor.RootContext, eng *engine.Engine, hub *websocket.Hub, timeout time.Duration) *Gateway {
	return &Gateway{
		Context:        context,
		Engine:         eng,
		Hub:            hub,
		RequestTimeout: timeout,
	}
}

// HandleEvent implements websocket.EventHandler for one inbound frame.
func (g *Gateway) HandleEvent(userID uuid.UUID, payload []byte) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		g.emitError(userID, utils.NewAppError(utils.ErrInvalidInput, "malformed event envelope", err))
		return
	}

	var appErr *utils.AppError
	switch envelope.Event {
	case EventMessage:
		appErr = g.handleMessage(userID, envelope.Data)
	case EventReadMessage:
		appErr = g.handleReadMessage(userID, envelope.Data)
	case EventReadConversation:
		appErr = g.handleReadConversation(userID, envelope.Data)
	case EventEditMessage:
		appErr = g.handleEditMessage(userID, envelope.Data)
	case EventDeleteMessage:
		appErr = g.handleDeleteMessage(userID, envelope.Data)
	case EventCreatePrivateConv:
		appErr = g.handleCreatePrivateConversation(userID, envelope.Data)
	case EventCreateGroupConv:
		appErr = g.handleCreateGroupConversation(userID, envelope.Data)
	default:
		appErr = utils.NewAppError(utils.ErrInvalidInput, "unknown event: "+envelope.Event, nil)
	}

	if appErr != nil {
		g.emitError(userID, appErr)
	}
}

func (g *Gateway) handleMessage(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed message payload", err)
	}

	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid conversation id", err)
	}

	content := sanitize.Text(payload.Content)
	if content == "" {
		return utils.NewAppError(utils.ErrInvalidInput, "message content is required", nil)
	}

	if appErr := g.requireMember(userID, conversationID); appErr != nil {
		return appErr
	}

	result, appErr := g.ask(g.Engine.GetMessageActor(), &actors.AppendMessageMsg{
		SenderID:       userID,
		ConversationID: conversationID,
		Content:        content,
	})
	if appErr != nil {
		return appErr
	}
	message := result.(*models.Message)

	memberIDs, appErr := g.memberIDs(conversationID)
	if appErr != nil {
		return appErr
	}
	g.emit(memberIDs, EventNewMessage, message)
	return nil
}

func (g *Gateway) handleReadMessage(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload ReadMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed read_message payload", err)
	}

	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid message id", err)
	}

	// Only members may write read-state; a stray receipt from an outsider
	// would corrupt the read-by-all member-set comparison.
	result, appErr := g.ask(g.Engine.GetMessageActor(), &actors.GetMessageMsg{MessageID: messageID})
	if appErr != nil {
		return appErr
	}
	message := result.(*models.Message)
	if appErr := g.requireMember(userID, message.ConversationID); appErr != nil {
		return appErr
	}

	result, appErr = g.ask(g.Engine.GetReadReceiptActor(), &actors.MarkReadMsg{
		MessageID: messageID,
		UserID:    userID,
	})
	if appErr != nil {
		return appErr
	}
	markResult := result.(*actors.MarkReadResult)

	// Only a newly created receipt can complete the member set, so a repeat
	// read never re-broadcasts the bluetick.
	if markResult.Created && markResult.ReadByAll {
		memberIDs, appErr := g.memberIDs(markResult.ConversationID)
		if appErr != nil {
			return appErr
		}
		g.emit(memberIDs, EventBluetick, []uuid.UUID{messageID})
	}
	return nil
}

func (g *Gateway) handleReadConversation(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload ReadConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed read_conversation payload", err)
	}

	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid conversation id", err)
	}

	if appErr := g.requireMember(userID, conversationID); appErr != nil {
		return appErr
	}

	result, appErr := g.ask(g.Engine.GetReadReceiptActor(), &actors.MarkConversationReadMsg{
		ConversationID: conversationID,
		UserID:         userID,
	})
	if appErr != nil {
		return appErr
	}
	markResult := result.(*actors.MarkConversationReadResult)

	if len(markResult.ReadByAllIDs) > 0 {
		memberIDs, appErr := g.memberIDs(conversationID)
		if appErr != nil {
			return appErr
		}
		g.emit(memberIDs, EventBluetick, markResult.ReadByAllIDs)
	}
	return nil
}

func (g *Gateway) handleEditMessage(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload EditMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed edit_message payload", err)
	}

	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid message id", err)
	}

	newContent := sanitize.Text(payload.NewContent)
	if newContent == "" {
		return utils.NewAppError(utils.ErrInvalidInput, "message content is required", nil)
	}

	result, appErr := g.ask(g.Engine.GetMessageActor(), &actors.EditMessageMsg{
		MessageID:        messageID,
		NewContent:       newContent,
		RequestingUserID: userID,
	})
	if appErr != nil {
		return appErr
	}
	message := result.(*models.Message)

	memberIDs, appErr := g.memberIDs(message.ConversationID)
	if appErr != nil {
		return appErr
	}
	g.emit(memberIDs, EventEdit, &EditEvent{ID: message.ID, Content: message.Content})
	return nil
}

func (g *Gateway) handleDeleteMessage(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload DeleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed delete_message payload", err)
	}

	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid message id", err)
	}

	result, appErr := g.ask(g.Engine.GetMessageActor(), &actors.DeleteMessageMsg{
		MessageID:        messageID,
		RequestingUserID: userID,
	})
	if appErr != nil {
		return appErr
	}
	deleteResult := result.(*actors.DeleteMessageResult)

	memberIDs, appErr := g.memberIDs(deleteResult.ConversationID)
	if appErr != nil {
		return appErr
	}
	g.emit(memberIDs, EventDelete, &DeleteEvent{ID: deleteResult.MessageID})
	return nil
}

func (g *Gateway) handleCreatePrivateConversation(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload CreatePrivateConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed create_private_conversation payload", err)
	}

	targetID, err := uuid.Parse(payload.TargetID)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid target user id", err)
	}

	result, appErr := g.ask(g.Engine.GetConversationActor(), &actors.CreatePrivateConversationMsg{
		InitiatorID: userID,
		TargetID:    targetID,
	})
	if appErr != nil {
		return appErr
	}
	conversation := result.(*models.Conversation)

	g.emit([]uuid.UUID{userID, targetID}, EventNewConversation, conversation)
	return nil
}

func (g *Gateway) handleCreateGroupConversation(userID uuid.UUID, data json.RawMessage) *utils.AppError {
	var payload CreateGroupConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "malformed create_group_conversation payload", err)
	}

	name := sanitize.Text(payload.Name)
	if name == "" {
		return utils.NewAppError(utils.ErrInvalidInput, "group name is required", nil)
	}

	memberIDs := make([]uuid.UUID, 0, len(payload.Users))
	for _, raw := range payload.Users {
		memberID, err := uuid.Parse(raw)
		if err != nil {
			return utils.NewAppError(utils.ErrInvalidInput, "invalid user id in member list: "+raw, err)
		}
		memberIDs = append(memberIDs, memberID)
	}

	result, appErr := g.ask(g.Engine.GetConversationActor(), &actors.CreateGroupConversationMsg{
		Name:      name,
		MemberIDs: memberIDs,
		CreatorID: userID,
	})
	if appErr != nil {
		return appErr
	}
	conversation := result.(*models.Conversation)

	g.emit(conversation.MemberIDs, EventNewConversation, conversation)
	return nil
}

// --- helpers ---

// ask sends a message to an actor and normalizes failures into AppErrors.
func (g *Gateway) ask(pid *actor.PID, message interface{}) (interface{}, *utils.AppError) {
	future := g.Context.RequestFuture(pid, message, g.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError(pid.String())
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

// requireMember gates every conversation-scoped event on membership.
func (g *Gateway) requireMember(userID, conversationID uuid.UUID) *utils.AppError {
	result, appErr := g.ask(g.Engine.GetConversationActor(), &actors.IsMemberMsg{
		UserID:         userID,
		ConversationID: conversationID,
	})
	if appErr != nil {
		return appErr
	}
	if isMember, ok := result.(bool); !ok || !isMember {
		return utils.NewNotMemberError(conversationID.String())
	}
	return nil
}

func (g *Gateway) memberIDs(conversationID uuid.UUID) ([]uuid.UUID, *utils.AppError) {
	result, appErr := g.ask(g.Engine.GetConversationActor(), &actors.GetMemberIDsMsg{
		ConversationID: conversationID,
	})
	if appErr != nil {
		return nil, appErr
	}
	return result.([]uuid.UUID), nil
}

// emit multicasts one event envelope to the rooms of all given users.
func (g *Gateway) emit(userIDs []uuid.UUID, event string, data interface{}) {
	encoded, err := json.Marshal(data)
	if err != nil {
		log.Printf("Gateway: failed to marshal %s payload: %v", event, err)
		return
	}
	envelope, err := json.Marshal(&Envelope{Event: event, Data: encoded})
	if err != nil {
		log.Printf("Gateway: failed to marshal %s envelope: %v", event, err)
		return
	}
	g.Hub.SendToUsers(userIDs, envelope)
}

// emitError reports a rejected event to the originating session's room only.
func (g *Gateway) emitError(userID uuid.UUID, appErr *utils.AppError) {
	log.Printf("Gateway: event from user %s rejected: %s (%s)", userID, appErr.Message, appErr.Code)
	g.emit([]uuid.UUID{userID}, EventError, &ErrorEvent{
		Kind:    appErr.Code,
		Message: appErr.Message,
	})
}
