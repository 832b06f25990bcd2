// internal/database/memory.go
package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"pondside/internal/models"
	"pondside/internal/utils"

	"github.com/google/uuid"
)

// MemoryDB is an in-process DBAdapter used for tests and DB_TYPE=memory.
// One mutex serializes all mutations, which gives it the same atomicity
// guarantees the Postgres adapter gets from transactions and unique
// constraints.
type MemoryDB struct {
	mu sync.RWMutex

	users         map[uuid.UUID]*models.User
	usersByEmail  map[string]uuid.UUID
	conversations map[uuid.UUID]*models.Conversation
	members       map[uuid.UUID][]*models.ConversationMember
	privatePairs  map[string]uuid.UUID
	messages      map[uuid.UUID]*models.Message
	readMessages  map[uuid.UUID]map[uuid.UUID]*models.ReadMessage
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[uuid.UUID]*models.User),
		usersByEmail:  make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]*models.Conversation),
		members:       make(map[uuid.UUID][]*models.ConversationMember),
		privatePairs:  make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*models.Message),
		readMessages:  make(map[uuid.UUID]map[uuid.UUID]*models.ReadMessage),
	}
}

func (m *MemoryDB) Close(ctx context.Context) error {
	return nil
}

func pairKey(a, b uuid.UUID) string {
	lo, hi := NormalizePair(a, b)
	return lo.String() + "|" + hi.String()
}

// --- User methods ---

func (m *MemoryDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, utils.NewUserNotFoundError(id.String())
	}
	copied := *user
	return &copied, nil
}

func (m *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.usersByEmail[email]
	if !exists {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "User not found: "+email, nil)
	}
	copied := *m.users[id]
	return &copied, nil
}

func (m *MemoryDB) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByEmail[user.Email]; exists {
		return utils.NewAppError(utils.ErrUserAlreadyExists, "username or email already taken", nil)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	copied := *user
	m.users[user.ID] = &copied
	m.usersByEmail[user.Email] = user.ID
	return nil
}

// --- Conversation methods ---

func (m *MemoryDB) CreatePrivateConversation(ctx context.Context, conv *models.Conversation, userA, userB uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(userA, userB)
	if _, exists := m.privatePairs[key]; exists {
		return utils.NewAppError(utils.ErrConversationExists, "private conversation already exists for this pair", nil)
	}
	for _, userID := range []uuid.UUID{userA, userB} {
		if _, exists := m.users[userID]; !exists {
			return utils.NewUserNotFoundError(userID.String())
		}
	}

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.MemberIDs = []uuid.UUID{userA, userB}

	copied := *conv
	m.conversations[conv.ID] = &copied
	m.privatePairs[key] = conv.ID
	for _, userID := range []uuid.UUID{userA, userB} {
		m.members[conv.ID] = append(m.members[conv.ID], &models.ConversationMember{
			ConversationID: conv.ID,
			UserID:         userID,
			JoinedAt:       conv.CreatedAt,
		})
	}
	return nil
}

func (m *MemoryDB) CreateGroupConversation(ctx context.Context, conv *models.Conversation, members []*models.ConversationMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, member := range members {
		if _, exists := m.users[member.UserID]; !exists {
			return utils.NewUserNotFoundError(member.UserID.String())
		}
	}

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.MemberIDs = conv.MemberIDs[:0]
	for _, member := range members {
		conv.MemberIDs = append(conv.MemberIDs, member.UserID)
	}

	copied := *conv
	m.conversations[conv.ID] = &copied
	for _, member := range members {
		m.members[conv.ID] = append(m.members[conv.ID], &models.ConversationMember{
			ConversationID: conv.ID,
			UserID:         member.UserID,
			IsAdmin:        member.IsAdmin,
			JoinedAt:       conv.CreatedAt,
		})
	}
	return nil
}

func (m *MemoryDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[id]
	if !exists {
		return nil, utils.NewConversationNotFoundError(id.String())
	}
	copied := *conv
	copied.MemberIDs = m.memberIDsLocked(id)
	return &copied, nil
}

func (m *MemoryDB) memberIDsLocked(conversationID uuid.UUID) []uuid.UUID {
	memberIDs := make([]uuid.UUID, 0, len(m.members[conversationID]))
	for _, member := range m.members[conversationID] {
		memberIDs = append(memberIDs, member.UserID)
	}
	return memberIDs
}

func (m *MemoryDB) GetConversationMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memberIDsLocked(conversationID), nil
}

func (m *MemoryDB) IsConversationMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, member := range m.members[conversationID] {
		if member.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryDB) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type activity struct {
		conv   *models.Conversation
		latest time.Time
	}

	entries := []activity{}
	for convID, members := range m.members {
		for _, member := range members {
			if member.UserID != userID {
				continue
			}
			conv := m.conversations[convID]
			copied := *conv
			copied.MemberIDs = m.memberIDsLocked(convID)

			latest := conv.CreatedAt
			for _, msg := range m.messages {
				if msg.ConversationID == convID && msg.CreatedAt.After(latest) {
					latest = msg.CreatedAt
				}
			}
			entries = append(entries, activity{conv: &copied, latest: latest})
			break
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].latest.After(entries[j].latest)
	})

	conversations := make([]*models.Conversation, 0, len(entries))
	for _, entry := range entries {
		conversations = append(conversations, entry.conv)
	}
	return conversations, nil
}

// --- Message methods ---

func (m *MemoryDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[msg.ConversationID]; !exists {
		return utils.NewConversationNotFoundError(msg.ConversationID.String())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	copied := *msg
	m.messages[msg.ID] = &copied
	return nil
}

func (m *MemoryDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, exists := m.messages[id]
	if !exists {
		return nil, utils.NewMessageNotFoundError(id.String())
	}
	copied := *msg
	copied.ReadUserIDs = m.readerIDsLocked(id)
	return &copied, nil
}

func (m *MemoryDB) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := []*models.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		copied := *msg
		copied.ReadUserIDs = m.readerIDsLocked(msg.ID)
		messages = append(messages, &copied)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (m *MemoryDB) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, exists := m.messages[id]
	if !exists {
		return utils.NewMessageNotFoundError(id.String())
	}
	msg.Content = content
	return nil
}

func (m *MemoryDB) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[id]; !exists {
		return utils.NewMessageNotFoundError(id.String())
	}
	delete(m.messages, id)
	// Cascade: read records belong to the message.
	delete(m.readMessages, id)
	return nil
}

// --- Read receipt methods ---

func (m *MemoryDB) readerIDsLocked(messageID uuid.UUID) []uuid.UUID {
	readerIDs := make([]uuid.UUID, 0, len(m.readMessages[messageID]))
	for userID := range m.readMessages[messageID] {
		readerIDs = append(readerIDs, userID)
	}
	return readerIDs
}

func (m *MemoryDB) SaveReadMessage(ctx context.Context, rm *models.ReadMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[rm.MessageID]; !exists {
		return false, utils.NewMessageNotFoundError(rm.MessageID.String())
	}
	if _, exists := m.readMessages[rm.MessageID]; !exists {
		m.readMessages[rm.MessageID] = make(map[uuid.UUID]*models.ReadMessage)
	}
	if existing, exists := m.readMessages[rm.MessageID][rm.UserID]; exists {
		// Idempotent: keep the original timestamp.
		*rm = *existing
		return false, nil
	}
	if rm.ReadAt.IsZero() {
		rm.ReadAt = time.Now()
	}
	copied := *rm
	m.readMessages[rm.MessageID][rm.UserID] = &copied
	return true, nil
}

func (m *MemoryDB) GetMessageReaderIDs(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readerIDsLocked(messageID), nil
}

func (m *MemoryDB) MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.ReadMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type timed struct {
		rm      *models.ReadMessage
		msgTime time.Time
	}
	createdTimed := []timed{}
	now := time.Now()
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if _, exists := m.readMessages[msg.ID]; !exists {
			m.readMessages[msg.ID] = make(map[uuid.UUID]*models.ReadMessage)
		}
		if _, exists := m.readMessages[msg.ID][userID]; exists {
			continue
		}
		rm := &models.ReadMessage{MessageID: msg.ID, UserID: userID, ReadAt: now}
		m.readMessages[msg.ID][userID] = rm
		copied := *rm
		createdTimed = append(createdTimed, timed{rm: &copied, msgTime: msg.CreatedAt})
	}

	sort.Slice(createdTimed, func(i, j int) bool {
		return createdTimed[i].msgTime.Before(createdTimed[j].msgTime)
	})
	created := make([]*models.ReadMessage, 0, len(createdTimed))
	for _, entry := range createdTimed {
		created = append(created, entry.rm)
	}
	return created, nil
}
