package contact

import (
	"context"
	"time"
)

// Kind values form the hierarchy company -> division -> person.
const (
	KindCompany  = "company"
	KindDivision = "division"
	KindPerson   = "person"
)

type Contact struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch holds the writable fields of an update. Nil means "leave unchanged".
type Patch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, c *Contact) error
	GetByID(ctx context.Context, id string) (*Contact, error)
	List(ctx context.Context, parentID string) ([]*Contact, error)
	// UpdateRevision applies the patch only if the stored revision still
	// matches expected, bumping the revision in the same statement.
	UpdateRevision(ctx context.Context, id string, expected int64, p Patch) (*Contact, error)
	// DeleteRevision removes the contact only if the stored revision still
	// matches expected.
	DeleteRevision(ctx context.Context, id string, expected int64) error
	CountChildren(ctx context.Context, id string) (int64, error)
}
