// Package engine is the HTTP transport: routing, auth middleware, request and
// response models, and the single translation of service error kinds to
// status codes.
package engine

import (
	"context"

	"github.com/mesworks/shopsched/internal/services/auth"
	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/internal/services/line"
	"github.com/mesworks/shopsched/internal/services/operation"
	"github.com/mesworks/shopsched/internal/services/operationtype"
	"github.com/mesworks/shopsched/internal/services/product"
	"github.com/mesworks/shopsched/internal/services/productionorder"
	"github.com/mesworks/shopsched/internal/services/surplus"
	"github.com/mesworks/shopsched/internal/services/workcenter"
	"github.com/mesworks/shopsched/pkg/logger"
)

// LineService is satisfied by *line.Service
type LineService interface {
	GetEnabled(ctx context.Context) ([]line.Line, error)
	GetByID(ctx context.Context, id int64) (*line.Line, error)
	Create(ctx context.Context, in line.Input) (*line.Line, error)
	Update(ctx context.Context, id int64, in line.Input) (*line.Line, error)
	Delete(ctx context.Context, id int64) error
}

// WorkCenterService is satisfied by *workcenter.Service
type WorkCenterService interface {
	GetEnabled(ctx context.Context) ([]workcenter.WorkCenter, error)
	GetByID(ctx context.Context, id int64) (*workcenter.WorkCenter, error)
	Create(ctx context.Context, in workcenter.Input) (*workcenter.WorkCenter, error)
	Update(ctx context.Context, id int64, in workcenter.Input) (*workcenter.WorkCenter, error)
	Delete(ctx context.Context, id int64) error
}

// ProductService is satisfied by *product.Service
type ProductService interface {
	GetEnabled(ctx context.Context) ([]product.Product, error)
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Update(ctx context.Context, id int64, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
}

// OperationService is satisfied by *operation.Service
type OperationService interface {
	GetEnabled(ctx context.Context) ([]operation.Operation, error)
	GetByID(ctx context.Context, id int64) (*operation.Operation, error)
	Create(ctx context.Context, in operation.Input) (*operation.Operation, error)
	Update(ctx context.Context, id int64, in operation.Input) (*operation.Operation, error)
	Delete(ctx context.Context, id int64) error
}

// OperationTypeService is satisfied by *operationtype.Service
type OperationTypeService interface {
	GetEnabled(ctx context.Context) ([]operationtype.OperationType, error)
	GetByID(ctx context.Context, id int64) (*operationtype.OperationType, error)
	Create(ctx context.Context, in operationtype.Input) (*operationtype.OperationType, error)
	Update(ctx context.Context, id int64, in operationtype.Input) (*operationtype.OperationType, error)
	Delete(ctx context.Context, id int64) error
}

// ProductionOrderService is satisfied by *productionorder.Service
type ProductionOrderService interface {
	GetEnabled(ctx context.Context) ([]productionorder.ProductionOrder, error)
	GetByID(ctx context.Context, id int64) (*productionorder.ProductionOrder, error)
	Create(ctx context.Context, in productionorder.Input) (*productionorder.ProductionOrder, error)
	Update(ctx context.Context, id int64, in productionorder.Input) (*productionorder.ProductionOrder, error)
	Delete(ctx context.Context, id int64) error
}

// SurplusService is satisfied by *surplus.Service
type SurplusService interface {
	GetEnabled(ctx context.Context) ([]surplus.Surplus, error)
	GetByID(ctx context.Context, id int64) (*surplus.Surplus, error)
	Create(ctx context.Context, in surplus.Input) (*surplus.Surplus, error)
	Update(ctx context.Context, id int64, in surplus.Input) (*surplus.Surplus, error)
	Delete(ctx context.Context, id int64) error
}

// AuthService is satisfied by *auth.Service
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, email, password string) (*identity.User, error)
	ParseToken(tokenString string) (*auth.Claims, error)
	AssignRole(ctx context.Context, userID int64, roleName string) error
	RemoveRole(ctx context.Context, userID int64, roleName string) error
	AddClaim(ctx context.Context, userID int64, claim identity.Claim) error
	RemoveClaim(ctx context.Context, userID int64, claim identity.Claim) error
	DeleteUser(ctx context.Context, userID int64) error
	UpdateUserPermissions(ctx context.Context, userID int64, desiredRoles []string, desiredClaims []identity.Claim) error
	GetUserRoles(ctx context.Context, userID int64) ([]string, error)
	GetUserClaims(ctx context.Context, userID int64) ([]identity.Claim, error)
}

// Services bundles everything the engine routes to
type Services struct {
	Lines            LineService
	WorkCenters      WorkCenterService
	Products         ProductService
	Operations       OperationService
	OperationTypes   OperationTypeService
	ProductionOrders ProductionOrderService
	Surplus          SurplusService
	Auth             AuthService
}

// Engine wires the HTTP surface to the services
type Engine struct {
	services Services
	logger   *logger.Logger
}

// NewEngine creates a new engine
func NewEngine(services Services, logger *logger.Logger) *Engine {
	return &Engine{
		services: services,
		logger:   logger,
	}
}
