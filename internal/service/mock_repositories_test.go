package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// In-memory doubles for the repository interfaces. The message mock emulates
// the transactional send step (insert + preview + unread pointers) the same
// way the real repository does inside one transaction, so service tests see
// the same observable state.

type MockUserRepository struct {
	users map[uint]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uint]*models.User)}
}

func (m *MockUserRepository) Add(user *models.User) {
	m.users[user.ID] = user
}

func (m *MockUserRepository) FindByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *MockUserRepository) UpdateOnlineStatus(userID uint, isOnline bool) error {
	if u, ok := m.users[userID]; ok {
		u.IsOnline = isOnline
		return nil
	}
	return gorm.ErrRecordNotFound
}

type MockParticipantRepository struct {
	participants map[string]*models.Participant
	messages     *MockMessageRepository
}

func NewMockParticipantRepository() *MockParticipantRepository {
	return &MockParticipantRepository{participants: make(map[string]*models.Participant)}
}

func participantKey(conversationID, userID uint) string {
	return fmt.Sprintf("%d:%d", conversationID, userID)
}

func (m *MockParticipantRepository) Add(p *models.Participant) {
	m.participants[participantKey(p.ConversationID, p.UserID)] = p
}

func (m *MockParticipantRepository) Get(conversationID, userID uint) (*models.Participant, error) {
	if p, ok := m.participants[participantKey(conversationID, userID)]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockParticipantRepository) ListActive(conversationID uint) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range m.participants {
		if p.ConversationID == conversationID && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MockParticipantRepository) SetMuted(conversationID, userID uint, muted bool) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.IsMuted = muted
	return nil
}

func (m *MockParticipantRepository) SetCleared(conversationID, userID uint, at time.Time) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.ClearedAt = &at
	p.FirstUnreadMessageID = nil
	return nil
}

func (m *MockParticipantRepository) SetDeleted(conversationID, userID uint, at time.Time) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.DeletedAt = &at
	return nil
}

func (m *MockParticipantRepository) Restore(conversationID, userID uint) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.DeletedAt = nil
	return nil
}

func (m *MockParticipantRepository) MarkRead(conversationID, userID uint, at time.Time, firstUnreadID *uint) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.LastReadAt = &at
	p.FirstUnreadMessageID = firstUnreadID
	return nil
}

func (m *MockParticipantRepository) UpdateRole(conversationID, userID uint, role models.ParticipantRole) error {
	p, err := m.Get(conversationID, userID)
	if err != nil {
		return err
	}
	p.Role = role
	return nil
}

func (m *MockParticipantRepository) CountUnread(conversationID, userID uint, firstUnreadID *uint, clearedAt *time.Time) (int64, error) {
	if firstUnreadID == nil || m.messages == nil {
		return 0, nil
	}
	anchor, ok := m.messages.messages[*firstUnreadID]
	if !ok {
		return 0, nil
	}
	var count int64
	for _, msg := range m.messages.messages {
		if msg.ConversationID != conversationID || msg.SenderID == userID {
			continue
		}
		if msg.CreatedAt.Before(anchor.CreatedAt) {
			continue
		}
		if clearedAt != nil && !msg.CreatedAt.After(*clearedAt) {
			continue
		}
		count++
	}
	return count, nil
}

type MockConversationRepository struct {
	mu            sync.Mutex
	conversations map[uint]*models.Conversation
	participants  *MockParticipantRepository
	nextID        uint
}

func NewMockConversationRepository(participants *MockParticipantRepository) *MockConversationRepository {
	return &MockConversationRepository{
		conversations: make(map[uint]*models.Conversation),
		participants:  participants,
		nextID:        1,
	}
}

func (m *MockConversationRepository) GetOrCreateDirect(userA, userB uint) (*models.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.DirectKeyFor(userA, userB)
	for _, conv := range m.conversations {
		if conv.DirectKey != nil && *conv.DirectKey == key {
			if p, err := m.participants.Get(conv.ID, userA); err == nil {
				p.DeletedAt = nil
			}
			return m.findLocked(conv.ID), false, nil
		}
	}

	conv := &models.Conversation{ID: m.nextID, Type: models.DirectConversation, DirectKey: &key, CreatedAt: time.Now()}
	m.nextID++
	m.conversations[conv.ID] = conv
	m.participants.Add(&models.Participant{ConversationID: conv.ID, UserID: userA, Role: models.RoleMember})
	m.participants.Add(&models.Participant{ConversationID: conv.ID, UserID: userB, Role: models.RoleMember})
	return m.findLocked(conv.ID), true, nil
}

func (m *MockConversationRepository) CreateGroup(conv *models.Conversation, participants []models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv.ID = m.nextID
	m.nextID++
	conv.CreatedAt = time.Now()
	m.conversations[conv.ID] = conv
	for i := range participants {
		p := participants[i]
		p.ConversationID = conv.ID
		m.participants.Add(&p)
	}
	return nil
}

func (m *MockConversationRepository) FindByID(id uint) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv := m.findLocked(id); conv != nil {
		return conv, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// findLocked returns a copy with participants attached, mirroring the
// repository's preload.
func (m *MockConversationRepository) findLocked(id uint) *models.Conversation {
	conv, ok := m.conversations[id]
	if !ok {
		return nil
	}
	out := *conv
	out.Participants = nil
	for _, p := range m.participants.participants {
		if p.ConversationID == id {
			out.Participants = append(out.Participants, *p)
		}
	}
	sort.Slice(out.Participants, func(i, j int) bool { return out.Participants[i].UserID < out.Participants[j].UserID })
	return &out
}

func (m *MockConversationRepository) ListForUser(userID uint) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for id := range m.conversations {
		p, err := m.participants.Get(id, userID)
		if err != nil || p.DeletedAt != nil {
			continue
		}
		out = append(out, *m.findLocked(id))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	return out, nil
}

func (m *MockConversationRepository) UpdateMeta(id uint, name, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if name != "" {
		conv.Name = name
	}
	if avatarURL != "" {
		conv.AvatarURL = avatarURL
	}
	return nil
}

type MockMessageRepository struct {
	messages      map[uint]*models.Message
	hides         map[string]bool
	conversations *MockConversationRepository
	participants  *MockParticipantRepository
	nextID        uint
	now           time.Time
}

func NewMockMessageRepository(conversations *MockConversationRepository, participants *MockParticipantRepository) *MockMessageRepository {
	m := &MockMessageRepository{
		messages:      make(map[uint]*models.Message),
		hides:         make(map[string]bool),
		conversations: conversations,
		participants:  participants,
		nextID:        1,
		now:           time.Now(),
	}
	if participants != nil {
		participants.messages = m
	}
	return m
}

// tick hands out strictly increasing timestamps so ordering in tests is
// deterministic.
func (m *MockMessageRepository) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *MockMessageRepository) CreateInConversation(message *models.Message, preview string) error {
	message.ID = m.nextID
	m.nextID++
	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.tick()
	}
	m.messages[message.ID] = message

	if m.conversations != nil {
		if conv, ok := m.conversations.conversations[message.ConversationID]; ok {
			conv.LastMessagePreview = preview
			at := message.CreatedAt
			conv.LastMessageAt = &at
		}
	}

	if message.ParentID != nil {
		if parent, ok := m.messages[*message.ParentID]; ok {
			parent.ReplyCount++
		}
	}

	if m.participants != nil {
		for _, p := range m.participants.participants {
			if p.ConversationID != message.ConversationID || p.UserID == message.SenderID {
				continue
			}
			if p.DeletedAt == nil && p.FirstUnreadMessageID == nil {
				id := message.ID
				p.FirstUnreadMessageID = &id
			}
		}
	}
	return nil
}

func (m *MockMessageRepository) FindByID(id uint) (*models.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockMessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	for _, msg := range m.messages {
		if msg.ClientID == clientID && msg.SenderID == senderID {
			return msg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockMessageRepository) ListByConversation(conversationID, viewerID uint, clearedAt *time.Time, cursor uint, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if m.hides[participantKey(msg.ID, viewerID)] {
			continue
		}
		if clearedAt != nil && !msg.CreatedAt.After(*clearedAt) {
			continue
		}
		if cursor > 0 && msg.ID >= cursor {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockMessageRepository) UpdateContent(messageID uint, content string, editedAt time.Time) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	return nil
}

func (m *MockMessageRepository) TombstoneForAll(messageID uint) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msg.Content = ""
	msg.Metadata = models.MessageMetadata{}
	msg.DeletedForAll = true
	return nil
}

func (m *MockMessageRepository) HideForUser(messageID, userID uint) error {
	if _, ok := m.messages[messageID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.hides[participantKey(messageID, userID)] = true
	return nil
}

func (m *MockMessageRepository) MarkDelivered(messageID uint) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if msg.Status.CanTransition(models.StatusDelivered) {
		msg.Status = models.StatusDelivered
	}
	return nil
}

func (m *MockMessageRepository) NextUnreadAfter(conversationID, readerID, afterID uint, clearedAt *time.Time) (*uint, error) {
	var next *uint
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.ID <= afterID {
			continue
		}
		if m.hides[participantKey(msg.ID, readerID)] {
			continue
		}
		if clearedAt != nil && !msg.CreatedAt.After(*clearedAt) {
			continue
		}
		if next == nil || msg.ID < *next {
			id := msg.ID
			next = &id
		}
	}
	return next, nil
}

func (m *MockMessageRepository) MarkReadUpTo(conversationID, readerID, uptoMessageID uint) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.ID > uptoMessageID {
			continue
		}
		if msg.Status == models.StatusSent || msg.Status == models.StatusDelivered {
			msg.Status = models.StatusRead
			n++
		}
	}
	return n, nil
}

// MockNotifier records notification fan-out for assertions.
type MockNotifier struct {
	mu       sync.Mutex
	Received []uint
}

func (n *MockNotifier) MessageReceived(recipientID, senderID, conversationID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Received = append(n.Received, recipientID)
	return nil
}

func (n *MockNotifier) RecipientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Received)
}
