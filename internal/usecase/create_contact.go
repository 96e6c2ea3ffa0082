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

type CreateContact struct {
	txManager   postgres.Transactor
	contactRepo contact.Repository
	outboxRepo  outbox.Repository
}

func NewCreateContact(
	txManager postgres.Transactor,
	contactRepo contact.Repository,
	outboxRepo outbox.Repository,
) *CreateContact {
	return &CreateContact{
		txManager:   txManager,
		contactRepo: contactRepo,
		outboxRepo:  outboxRepo,
	}
}

type CreateContactParams struct {
	ParentID string `json:"parent_id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (uc *CreateContact) Execute(ctx context.Context, params CreateContactParams) (*contact.Contact, error) {
	switch params.Kind {
	case contact.KindCompany, contact.KindDivision, contact.KindPerson:
	default:
		return nil, fmt.Errorf("invalid contact kind %q", params.Kind)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("contact name is required")
	}

	now := time.Now()
	newContact := &contact.Contact{
		ID:        uuid.New().String(),
		ParentID:  params.ParentID,
		Kind:      params.Kind,
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(newContact)
	if err != nil {
		return nil, fmt.Errorf("marshal contact: %w", err)
	}

	outboxEvent := &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     "ContactCreated",
		Payload:       payload,
		Status:        "new",
		CorrelationID: newContact.ID,
		Producer:      "contact-service",
		CreatedAt:     now,
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.contactRepo.Create(txCtx, newContact); err != nil {
			return err
		}

		if err := uc.outboxRepo.Create(txCtx, outboxEvent); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("transaction failed: %w", err)
	}

	return newContact, nil
}
