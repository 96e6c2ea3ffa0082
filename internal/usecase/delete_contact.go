package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/outbox"
	"contactdesk/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

type DeleteContact struct {
	txManager   postgres.Transactor
	contactRepo contact.Repository
	outboxRepo  outbox.Repository
}

func NewDeleteContact(
	txManager postgres.Transactor,
	contactRepo contact.Repository,
	outboxRepo outbox.Repository,
) *DeleteContact {
	return &DeleteContact{
		txManager:   txManager,
		contactRepo: contactRepo,
		outboxRepo:  outboxRepo,
	}
}

// Execute deletes the contact if the stored revision still equals expected.
// Contacts that still have children are refused with a DependentsError so
// the caller can explain what blocks the delete and how to proceed.
func (uc *DeleteContact) Execute(ctx context.Context, id string, expected int64) error {
	existing, err := uc.contactRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	children, err := uc.contactRepo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return &contact.DependentsError{
			ID:      id,
			Message: fmt.Sprintf("contact %q has %d dependent record(s)", existing.Name, children),
			Details: map[string]any{
				"contact_id":     id,
				"dependent_kind": childKind(existing.Kind),
				"count":          children,
			},
			Suggestions: []string{
				"reassign or delete the dependent records first",
				"move the dependents to another parent contact",
			},
		}
	}

	payload, err := json.Marshal(map[string]any{
		"id":   id,
		"name": existing.Name,
		"kind": existing.Kind,
	})
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}

	return uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.contactRepo.DeleteRevision(txCtx, id, expected); err != nil {
			return err
		}

		return uc.outboxRepo.Create(txCtx, &outbox.Event{
			ID:            uuid.New().String(),
			EventType:     "ContactDeleted",
			Payload:       payload,
			Status:        "new",
			CorrelationID: id,
			Producer:      "contact-service",
			CreatedAt:     time.Now(),
		})
	})
}

func childKind(kind string) string {
	switch kind {
	case contact.KindCompany:
		return contact.KindDivision
	case contact.KindDivision:
		return contact.KindPerson
	default:
		return ""
	}
}
