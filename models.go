package accounts

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the user visible side of an account. ID always equals the
// owning Identity.ID.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            string     `bun:"id,pk" json:"id"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
