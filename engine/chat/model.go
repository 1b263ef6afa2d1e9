package chat

import (
	"time"

	"github.com/appforge/appforge/engine/core"
)

// Role identifies who produced a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// Message is one append-only turn of a project conversation.
type Message struct {
	ID        core.ID        `db:"id,pk" json:"id"`
	ProjectID core.ID        `db:"project_id" json:"project_id"`
	Role      Role           `db:"role" json:"role"`
	Content   string         `db:"content" json:"content"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
