package local

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Credential is the local identity record: an email and a bcrypt hash.
type Credential struct {
	bun.BaseModel `bun:"table:local_identities,alias:lid"`

	ID           uuid.UUID  `bun:"id,pk,nullzero" json:"id"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
