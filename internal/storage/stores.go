package storage

import (
	"context"

	"github.com/familyconnect/familyconnect/internal/core"
)

// Stores bundles every entity store over one database and adapts them to
// the orchestration layer's persistence surface.
type Stores struct {
	DB            *DB
	Users         *UserStore
	Conversations *ConversationStore
	Comms         *CommStore
	Care          *CareStore
	Frames        *FrameStore
}

// NewStores creates all stores over one open database
func NewStores(db *DB) *Stores {
	return &Stores{
		DB:            db,
		Users:         NewUserStore(db),
		Conversations: NewConversationStore(db),
		Comms:         NewCommStore(db),
		Care:          NewCareStore(db),
		Frames:        NewFrameStore(db),
	}
}

// GetUser resolves a user id
func (s *Stores) GetUser(ctx context.Context, id int64) (*core.User, error) {
	return s.Users.GetByID(ctx, id)
}

// GetFamilyConnections lists a user's family links
func (s *Stores) GetFamilyConnections(ctx context.Context, userID int64) ([]core.FamilyConnection, error) {
	return s.Users.Connections(ctx, userID)
}

// GetConversations lists a user's recent conversations, oldest first
func (s *Stores) GetConversations(ctx context.Context, userID int64, limit int) ([]core.Conversation, error) {
	return s.Conversations.Recent(ctx, userID, limit)
}

// GetCareNotifications lists a user's care notifications
func (s *Stores) GetCareNotifications(ctx context.Context, userID int64) ([]core.CareNotification, error) {
	return s.Care.Notifications(ctx, userID)
}

// CreateAgentCommunication appends an inter-agent record
func (s *Stores) CreateAgentCommunication(ctx context.Context, msg core.InterAgentMessage) error {
	return s.Comms.Create(ctx, &msg)
}

// GetAgentCommunications returns the full communication log
func (s *Stores) GetAgentCommunications(ctx context.Context) ([]core.InterAgentMessage, error) {
	return s.Comms.All(ctx)
}

// CreateConversation records one user/agent exchange
func (s *Stores) CreateConversation(ctx context.Context, conv core.Conversation) (*core.Conversation, error) {
	return s.Conversations.Create(ctx, &conv)
}
