package usecase

import (
	"context"

	"contactdesk/internal/domain/contact"
)

type ListContacts struct {
	contactRepo contact.Repository
}

func NewListContacts(contactRepo contact.Repository) *ListContacts {
	return &ListContacts{contactRepo: contactRepo}
}

func (uc *ListContacts) Execute(ctx context.Context, parentID string) ([]*contact.Contact, error) {
	return uc.contactRepo.List(ctx, parentID)
}
