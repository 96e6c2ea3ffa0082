package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contactdesk/internal/domain/contact"

	"github.com/redis/go-redis/v9"
)

type GetContact struct {
	redisClient *redis.Client
	contactRepo contact.Repository
}

func NewGetContact(redisClient *redis.Client, contactRepo contact.Repository) *GetContact {
	return &GetContact{
		redisClient: redisClient,
		contactRepo: contactRepo,
	}
}

func (uc *GetContact) Execute(ctx context.Context, id string) (*contact.Contact, error) {
	cacheKey := fmt.Sprintf("contact:%s", id)

	if uc.redisClient != nil {
		val, err := uc.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var c contact.Contact
			if err := json.Unmarshal([]byte(val), &c); err == nil {
				return &c, nil
			}
		}
	}

	c, err := uc.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.redisClient != nil {
		data, _ := json.Marshal(c)
		// Short TTL: the cached copy carries the revision a conditional
		// write will be checked against, so it must not linger.
		uc.redisClient.Set(ctx, cacheKey, data, 1*time.Second)
	}

	return c, nil
}
