package handlers

import (
	"github.com/Freeeeeet/careconnect/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд и callback'ов
type Handlers struct {
	userService       *service.UserService
	requestService    *service.RequestService
	connectionService *service.ConnectionService
	logger            *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	requestService *service.RequestService,
	connectionService *service.ConnectionService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:       userService,
		requestService:    requestService,
		connectionService: connectionService,
		logger:            logger,
	}
}
