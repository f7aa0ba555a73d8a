package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
)

// CreateUser stores or replaces a user account under its uid.
func (s *Service) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	c, err := s.deps()
	if err != nil {
		return model.User{}, err
	}
	doc, err := encodeUser(u)
	if err != nil {
		return model.User{}, err
	}
	if err := c.store.Set(ctx, model.CollectionUsers, u.UID, doc); err != nil {
		return model.User{}, storeErr("create user", err)
	}
	u.Role = model.NormalizeRole(u.Role)
	return u, nil
}

// RegisterUser provisions a new login account. An empty uid is generated;
// an existing uid is refused with ErrUserExists instead of being replaced.
func (s *Service) RegisterUser(ctx context.Context, u model.User) (model.User, error) {
	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	unlock := s.records.lock(userKey(u.UID))
	defer unlock()

	if _, err := s.GetUser(ctx, u.UID); err == nil {
		return model.User{}, fmt.Errorf("register %s: %w", u.UID, ErrUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}
	created, err := s.CreateUser(ctx, u)
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info(ctx, "user registered", logger.String("uid", created.UID), logger.String("role", created.Role))
	return created, nil
}

// GetUser returns the account for uid.
func (s *Service) GetUser(ctx context.Context, uid string) (model.User, error) {
	c, err := s.deps()
	if err != nil {
		return model.User{}, err
	}
	doc, err := c.store.Get(ctx, model.CollectionUsers, uid)
	if err != nil {
		return model.User{}, storeErr("get user", err)
	}
	return decodeUser(doc.ID, doc.Data)
}

// DeleteUser removes a login account. The caller's next request with that
// uid fails authentication.
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	c, err := s.deps()
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, model.CollectionUsers, uid); err != nil {
		return storeErr("delete user", err)
	}
	s.logger.Info(ctx, "user deleted", logger.String("uid", uid))
	return nil
}
