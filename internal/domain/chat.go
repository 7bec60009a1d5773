package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatRole identifies who wrote a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// Valid reports whether r is a known role.
func (r ChatRole) Valid() bool {
	return r == ChatRoleUser || r == ChatRoleAssistant || r == ChatRoleSystem
}

// ChatMessage is one stored message of a chat session. Text may embed
// presigned object URLs; they are refreshed on read, never on write.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenantId" json:"tenantId"`
	ProjectID string             `bson:"projectId" json:"projectId"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	Role      ChatRole           `bson:"role" json:"role"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
