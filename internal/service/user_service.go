package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/careconnect/internal/model"
	"go.uber.org/zap"
)

// UserService доступ к внешней подсистеме идентификации (только чтение)
type UserService struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// FindUser получает пользователя по ID; nil, если не найден
func (s *UserService) FindUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("find user by telegram id: %w", err)
	}
	return user, nil
}

// GetByIDs получает пользователей по ID в виде map
func (s *UserService) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// HasRole проверяет роль пользователя
func (s *UserService) HasRole(user *model.User, role model.Role) bool {
	return user.HasRole(role)
}
