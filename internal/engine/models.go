package engine

import (
	"time"

	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/internal/services/line"
	"github.com/mesworks/shopsched/internal/services/operation"
	"github.com/mesworks/shopsched/internal/services/operationtype"
	"github.com/mesworks/shopsched/internal/services/product"
	"github.com/mesworks/shopsched/internal/services/productionorder"
	"github.com/mesworks/shopsched/internal/services/surplus"
	"github.com/mesworks/shopsched/internal/services/workcenter"
)

// ProblemResponse is the structured error document returned on every failure
type ProblemResponse struct {
	Status int                 `json:"status"`
	Title  string              `json:"title"`
	Detail string              `json:"detail"`
	Code   string              `json:"code,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// --- Lines ---

// LineRequest is the create/update payload for a line
type LineRequest struct {
	Name          string  `json:"name"`
	WorkCenterIDs []int64 `json:"workCenterIds"`
	ProductIDs    []int64 `json:"productIds"`
}

// LineResponse is a line with its associations resolved
type LineResponse struct {
	ID                int64                       `json:"id"`
	Name              string                      `json:"name"`
	Enabled           bool                        `json:"enabled"`
	CreatedAt         time.Time                   `json:"createdAt"`
	LastUpdate        time.Time                   `json:"lastUpdate"`
	WorkCenterRoutes  []WorkCenterRouteResponse   `json:"workCenterRoutes"`
	AvailableProducts []ProductMembershipResponse `json:"availableProducts"`
}

// WorkCenterRouteResponse is one ordered line→work-center association
type WorkCenterRouteResponse struct {
	ID                   int64      `json:"id"`
	WorkCenterID         int64      `json:"workCenterId"`
	WorkCenterName       string     `json:"workCenterName"`
	Order                int        `json:"order"`
	Version              int        `json:"version"`
	TransportTimeMinutes int        `json:"transportTimeMinutes"`
	EffectiveStartDate   time.Time  `json:"effectiveStartDate"`
	EffectiveEndDate     *time.Time `json:"effectiveEndDate"`
}

// ProductMembershipResponse is one line→product membership
type ProductMembershipResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
}

func toLineResponse(l *line.Line) LineResponse {
	resp := LineResponse{
		ID:                l.ID,
		Name:              l.Name,
		Enabled:           l.Enabled,
		CreatedAt:         l.Created,
		LastUpdate:        l.Updated,
		WorkCenterRoutes:  make([]WorkCenterRouteResponse, 0, len(l.WorkCenterRoutes)),
		AvailableProducts: make([]ProductMembershipResponse, 0, len(l.AvailableProducts)),
	}
	for _, r := range l.WorkCenterRoutes {
		resp.WorkCenterRoutes = append(resp.WorkCenterRoutes, WorkCenterRouteResponse{
			ID:                   r.ID,
			WorkCenterID:         r.WorkCenterID,
			WorkCenterName:       r.WorkCenterName,
			Order:                r.Order,
			Version:              r.Version,
			TransportTimeMinutes: r.TransportTimeMinutes,
			EffectiveStartDate:   r.EffectiveStart,
			EffectiveEndDate:     r.EffectiveEnd,
		})
	}
	for _, p := range l.AvailableProducts {
		resp.AvailableProducts = append(resp.AvailableProducts, ProductMembershipResponse{
			ID:          p.ID,
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
		})
	}
	return resp
}

// --- Work centers ---

// WorkCenterRequest is the create/update payload for a work center
type WorkCenterRequest struct {
	Name             string  `json:"name"`
	OptimalBatchSize int     `json:"optimalBatchSize"`
	LineID           int64   `json:"lineId"`
	OperationTypeIDs []int64 `json:"operationTypeIds"`
}

// WorkCenterResponse is a work center with its routes resolved
type WorkCenterResponse struct {
	ID               int64                    `json:"id"`
	Name             string                   `json:"name"`
	OptimalBatchSize int                      `json:"optimalBatchSize"`
	LineID           int64                    `json:"lineId"`
	LineName         string                   `json:"lineName"`
	Enabled          bool                     `json:"enabled"`
	CreatedAt        time.Time                `json:"createdAt"`
	LastUpdate       time.Time                `json:"lastUpdate"`
	OperationRoutes  []OperationRouteResponse `json:"operationRoutes"`
}

// OperationRouteResponse is one ordered association to an operation type
type OperationRouteResponse struct {
	ID                   int64      `json:"id"`
	OperationTypeID      int64      `json:"operationTypeId"`
	OperationTypeName    string     `json:"operationTypeName"`
	Order                int        `json:"order"`
	Version              int        `json:"version"`
	TransportTimeMinutes int        `json:"transportTimeMinutes,omitempty"`
	EffectiveStartDate   time.Time  `json:"effectiveStartDate"`
	EffectiveEndDate     *time.Time `json:"effectiveEndDate"`
	Label                *string    `json:"label,omitempty"`
}

func toWorkCenterResponse(w *workcenter.WorkCenter) WorkCenterResponse {
	resp := WorkCenterResponse{
		ID:               w.ID,
		Name:             w.Name,
		OptimalBatchSize: w.OptimalBatchSize,
		LineID:           w.LineID,
		LineName:         w.LineName,
		Enabled:          w.Enabled,
		CreatedAt:        w.Created,
		LastUpdate:       w.Updated,
		OperationRoutes:  make([]OperationRouteResponse, 0, len(w.OperationRoutes)),
	}
	for _, r := range w.OperationRoutes {
		resp.OperationRoutes = append(resp.OperationRoutes, OperationRouteResponse{
			ID:                   r.ID,
			OperationTypeID:      r.OperationTypeID,
			OperationTypeName:    r.OperationTypeName,
			Order:                r.Order,
			Version:              r.Version,
			TransportTimeMinutes: r.TransportTimeMinutes,
			EffectiveStartDate:   r.EffectiveStart,
			EffectiveEndDate:     r.EffectiveEnd,
			Label:                r.Label,
		})
	}
	return resp
}

// --- Products ---

// ProductRequest is the create/update payload for a product
type ProductRequest struct {
	Name             string  `json:"name"`
	UnitPrice        float64 `json:"unitPrice"`
	ProfitMargin     float64 `json:"profitMargin"`
	Priority         int     `json:"priority"`
	PenaltyCost      float64 `json:"penaltyCost"`
	OperationTypeIDs []int64 `json:"operationTypeIds"`
}

// ProductResponse is a product with its routes resolved
type ProductResponse struct {
	ID              int64                    `json:"id"`
	Name            string                   `json:"name"`
	UnitPrice       float64                  `json:"unitPrice"`
	ProfitMargin    float64                  `json:"profitMargin"`
	Priority        int                      `json:"priority"`
	PenaltyCost     float64                  `json:"penaltyCost"`
	Enabled         bool                     `json:"enabled"`
	CreatedAt       time.Time                `json:"createdAt"`
	LastUpdate      time.Time                `json:"lastUpdate"`
	OperationRoutes []OperationRouteResponse `json:"operationRoutes"`
}

func toProductResponse(p *product.Product) ProductResponse {
	resp := ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		UnitPrice:       p.UnitPrice,
		ProfitMargin:    p.ProfitMargin,
		Priority:        p.Priority,
		PenaltyCost:     p.PenaltyCost,
		Enabled:         p.Enabled,
		CreatedAt:       p.Created,
		LastUpdate:      p.Updated,
		OperationRoutes: make([]OperationRouteResponse, 0, len(p.OperationRoutes)),
	}
	for _, r := range p.OperationRoutes {
		resp.OperationRoutes = append(resp.OperationRoutes, OperationRouteResponse{
			ID:                 r.ID,
			OperationTypeID:    r.OperationTypeID,
			OperationTypeName:  r.OperationTypeName,
			Order:              r.Order,
			Version:            r.Version,
			EffectiveStartDate: r.EffectiveStart,
			EffectiveEndDate:   r.EffectiveEnd,
		})
	}
	return resp
}

// --- Operations ---

// OperationRequest is the create/update payload for an operation
type OperationRequest struct {
	Name                string  `json:"name"`
	SetupTimeMinutes    int     `json:"setupTimeMinutes"`
	CapacityTonsPerHour float64 `json:"capacityTonsPerHour"`
	OperationTypeID     int64   `json:"operationTypeId"`
	WorkCenterID        int64   `json:"workCenterId"`
}

// OperationResponse is an operation with FK names resolved
type OperationResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	SetupTimeMinutes    int       `json:"setupTimeMinutes"`
	CapacityTonsPerHour float64   `json:"capacityTonsPerHour"`
	OperationTypeID     int64     `json:"operationTypeId"`
	OperationTypeName   string    `json:"operationTypeName"`
	WorkCenterID        int64     `json:"workCenterId"`
	WorkCenterName      string    `json:"workCenterName"`
	Enabled             bool      `json:"enabled"`
	CreatedAt           time.Time `json:"createdAt"`
	LastUpdate          time.Time `json:"lastUpdate"`
}

func toOperationResponse(o *operation.Operation) OperationResponse {
	return OperationResponse{
		ID:                  o.ID,
		Name:                o.Name,
		SetupTimeMinutes:    o.SetupTimeMinutes,
		CapacityTonsPerHour: o.CapacityTonsPerHour,
		OperationTypeID:     o.OperationTypeID,
		OperationTypeName:   o.OperationTypeName,
		WorkCenterID:        o.WorkCenterID,
		WorkCenterName:      o.WorkCenterName,
		Enabled:             o.Enabled,
		CreatedAt:           o.Created,
		LastUpdate:          o.Updated,
	}
}

// --- Operation types ---

// OperationTypeRequest is the create/update payload for an operation type
type OperationTypeRequest struct {
	Name string `json:"name"`
}

// OperationTypeResponse is an operation type
type OperationTypeResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func toOperationTypeResponse(t *operationtype.OperationType) OperationTypeResponse {
	return OperationTypeResponse{
		ID:         t.ID,
		Name:       t.Name,
		Enabled:    t.Enabled,
		CreatedAt:  t.Created,
		LastUpdate: t.Updated,
	}
}

// --- Production orders ---

// ProductionOrderItemRequest is one payload order position
type ProductionOrderItemRequest struct {
	ProductID int64   `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// ProductionOrderRequest is the create/update payload for an order
type ProductionOrderRequest struct {
	OrderNumber   string                       `json:"orderNumber"`
	EarliestStart time.Time                    `json:"earliestStart"`
	Deadline      time.Time                    `json:"deadline"`
	Items         []ProductionOrderItemRequest `json:"items"`
}

// ProductionOrderItemResponse is one resolved order position
type ProductionOrderItemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
}

// ProductionOrderResponse is an order with its items
type ProductionOrderResponse struct {
	ID            int64                         `json:"id"`
	OrderNumber   string                        `json:"orderNumber"`
	EarliestStart time.Time                     `json:"earliestStart"`
	Deadline      time.Time                     `json:"deadline"`
	Enabled       bool                          `json:"enabled"`
	CreatedAt     time.Time                     `json:"createdAt"`
	LastUpdate    time.Time                     `json:"lastUpdate"`
	Items         []ProductionOrderItemResponse `json:"items"`
}

func toProductionOrderResponse(o *productionorder.ProductionOrder) ProductionOrderResponse {
	resp := ProductionOrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		EarliestStart: o.EarliestStart,
		Deadline:      o.Deadline,
		Enabled:       o.Enabled,
		CreatedAt:     o.Created,
		LastUpdate:    o.Updated,
		Items:         make([]ProductionOrderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, ProductionOrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return resp
}

// --- Surplus ---

// SurplusRequest is the create/update payload for a surplus record
type SurplusRequest struct {
	ProductID    int64   `json:"productId"`
	WorkCenterID int64   `json:"workCenterId"`
	Quantity     float64 `json:"quantity"`
}

// SurplusResponse is a surplus record with FK names resolved
type SurplusResponse struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"productId"`
	ProductName    string    `json:"productName"`
	WorkCenterID   int64     `json:"workCenterId"`
	WorkCenterName string    `json:"workCenterName"`
	Quantity       float64   `json:"quantity"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdate     time.Time `json:"lastUpdate"`
}

func toSurplusResponse(r *surplus.Surplus) SurplusResponse {
	return SurplusResponse{
		ID:             r.ID,
		ProductID:      r.ProductID,
		ProductName:    r.ProductName,
		WorkCenterID:   r.WorkCenterID,
		WorkCenterName: r.WorkCenterName,
		Quantity:       r.Quantity,
		Enabled:        r.Enabled,
		CreatedAt:      r.Created,
		LastUpdate:     r.Updated,
	}
}

// --- Auth ---

// LoginRequest is the credential payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string `json:"token"`
}

// RegisterRequest is the account creation payload
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is a stored account without credential material
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Name,
		Email:     u.Email,
		Enabled:   u.Enabled,
		CreatedAt: u.Created,
	}
}

// RoleRequest names a user/role pair
type RoleRequest struct {
	UserID   int64  `json:"userId"`
	RoleName string `json:"roleName"`
}

// ClaimRequest names a user/claim triple
type ClaimRequest struct {
	UserID     int64  `json:"userId"`
	ClaimType  string `json:"claimType"`
	ClaimValue string `json:"claimValue"`
}

// ClaimResponse is one stored claim
type ClaimResponse struct {
	ClaimType  string `json:"claimType"`
	ClaimValue string `json:"claimValue"`
}

// UpdatePermissionsRequest sets a user's desired roles and claims. Nil slices
// leave the corresponding aspect untouched.
type UpdatePermissionsRequest struct {
	UserID int64          `json:"userId"`
	Roles  []string       `json:"roles"`
	Claims []ClaimRequest `json:"claims"`
}

func toClaimResponses(claims []identity.Claim) []ClaimResponse {
	out := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, ClaimResponse{ClaimType: c.Type, ClaimValue: c.Value})
	}
	return out
}
