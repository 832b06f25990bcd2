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

// Message types for conversation directory operations
type (
	CreatePrivateConversationMsg struct {
		InitiatorID uuid.UUID
		TargetID    uuid.UUID
	}

	CreateGroupConversationMsg struct {
		Name        string
		Description string
		MemberIDs   []uuid.UUID
		CreatorID   uuid.UUID
	}

	IsMemberMsg struct {
		UserID         uuid.UUID
		ConversationID uuid.UUID
	}

	GetConversationMsg struct {
		ConversationID uuid.UUID
	}

	GetMemberIDsMsg struct {
		ConversationID uuid.UUID
	}

	ListConversationsMsg struct {
		UserID uuid.UUID
	}
)

// ConversationActor is the conversation directory: it creates and looks up
// conversations and memberships and enforces private-pair uniqueness through
// the persistence layer.
type ConversationActor struct {
	db      database.DBAdapter
	metrics *utils.MetricsCollector
}

func NewConversationActor(metrics *utils.MetricsCollector, db database.DBAdapter) actor.Actor {
	return &ConversationActor{
		db:      db,
		metrics: metrics,
	}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("ConversationActor started")

	case *actor.Stopping:
		log.Printf("ConversationActor stopping")

	case *CreatePrivateConversationMsg:
		a.handleCreatePrivate(context, msg)

	case *CreateGroupConversationMsg:
		a.handleCreateGroup(context, msg)

	case *IsMemberMsg:
		a.handleIsMember(context, msg)

	case *GetConversationMsg:
		a.handleGetConversation(context, msg)

	case *GetMemberIDsMsg:
		a.handleGetMemberIDs(context, msg)

	case *ListConversationsMsg:
		a.handleListConversations(context, msg)
	}
}

func (a *ConversationActor) handleCreatePrivate(context actor.Context, msg *CreatePrivateConversationMsg) {
	startTime := time.Now()

	if msg.InitiatorID == msg.TargetID {
		context.Respond(utils.NewAppError(utils.ErrConversationExists, "cannot start a private conversation with yourself", nil))
		return
	}

	conv := &models.Conversation{
		ID:        uuid.New(),
		IsGroup:   false,
		CreatedAt: time.Now(),
	}

	// The pair uniqueness check and the insert are one atomic operation in
	// the persistence layer; a lost race comes back as CONVERSATION_EXISTS.
	if err := a.db.CreatePrivateConversation(stdctx.Background(), conv, msg.InitiatorID, msg.TargetID); err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("create_private_conversation", time.Since(startTime))
	log.Printf("ConversationActor: Created private conversation %s for %s and %s", conv.ID, msg.InitiatorID, msg.TargetID)
	context.Respond(conv)
}

func (a *ConversationActor) handleCreateGroup(context actor.Context, msg *CreateGroupConversationMsg) {
	startTime := time.Now()

	if msg.Name == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "group name is required", nil))
		return
	}

	description := msg.Description
	if description == "" {
		description = "Group Description"
	}

	// Always include the creator, dedupe the rest, and validate that every
	// id resolves to an existing user.
	seen := map[uuid.UUID]bool{msg.CreatorID: true}
	memberIDs := []uuid.UUID{msg.CreatorID}
	for _, userID := range msg.MemberIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		memberIDs = append(memberIDs, userID)
	}

	for _, userID := range memberIDs {
		if _, err := a.db.GetUser(stdctx.Background(), userID); err != nil {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "unknown user in member list: "+userID.String(), err))
			return
		}
	}

	conv := &models.Conversation{
		ID:          uuid.New(),
		Name:        msg.Name,
		Description: description,
		IsGroup:     true,
		CreatedAt:   time.Now(),
	}

	members := make([]*models.ConversationMember, 0, len(memberIDs))
	for _, userID := range memberIDs {
		members = append(members, &models.ConversationMember{
			ConversationID: conv.ID,
			UserID:         userID,
			IsAdmin:        userID == msg.CreatorID,
		})
	}

	if err := a.db.CreateGroupConversation(stdctx.Background(), conv, members); err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("create_group_conversation", time.Since(startTime))
	log.Printf("ConversationActor: Created group conversation %s (%s) with %d members", conv.ID, conv.Name, len(members))
	context.Respond(conv)
}

func (a *ConversationActor) handleIsMember(context actor.Context, msg *IsMemberMsg) {
	isMember, err := a.db.IsConversationMember(stdctx.Background(), msg.UserID, msg.ConversationID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(isMember)
}

func (a *ConversationActor) handleGetConversation(context actor.Context, msg *GetConversationMsg) {
	conv, err := a.db.GetConversation(stdctx.Background(), msg.ConversationID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(conv)
}

func (a *ConversationActor) handleGetMemberIDs(context actor.Context, msg *GetMemberIDsMsg) {
	memberIDs, err := a.db.GetConversationMemberIDs(stdctx.Background(), msg.ConversationID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}
	context.Respond(memberIDs)
}

func (a *ConversationActor) handleListConversations(context actor.Context, msg *ListConversationsMsg) {
	startTime := time.Now()

	conversations, err := a.db.GetUserConversations(stdctx.Background(), msg.UserID)
	if err != nil {
		context.Respond(toAppError(err))
		return
	}

	a.metrics.AddOperationLatency("list_conversations", time.Since(startTime))
	context.Respond(conversations)
}

// toAppError keeps actor responses uniformly typed.
func toAppError(err error) *utils.AppError {
	if appErr, ok := err.(*utils.AppError); ok {
		return appErr
	}
	return utils.NewAppError(utils.ErrDatabase, "storage operation failed", err)
}
