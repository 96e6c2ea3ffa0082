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

type UpdateContact struct {
	txManager   postgres.Transactor
	contactRepo contact.Repository
	outboxRepo  outbox.Repository
}

func NewUpdateContact(
	txManager postgres.Transactor,
	contactRepo contact.Repository,
	outboxRepo outbox.Repository,
) *UpdateContact {
	return &UpdateContact{
		txManager:   txManager,
		contactRepo: contactRepo,
		outboxRepo:  outboxRepo,
	}
}

// Execute applies the patch if the stored revision still equals expected.
// The revision check and the bump happen in one statement; a stale expected
// comes back as contact.RevisionMismatchError carrying the current revision.
func (uc *UpdateContact) Execute(ctx context.Context, id string, expected int64, p contact.Patch) (*contact.Contact, error) {
	var updated *contact.Contact

	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = uc.contactRepo.UpdateRevision(txCtx, id, expected, p)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal contact: %w", err)
		}

		return uc.outboxRepo.Create(txCtx, &outbox.Event{
			ID:            uuid.New().String(),
			EventType:     "ContactUpdated",
			Payload:       payload,
			Status:        "new",
			CorrelationID: id,
			Producer:      "contact-service",
			CreatedAt:     time.Now(),
		})
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}
