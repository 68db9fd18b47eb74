package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mesworks/shopsched/internal/services/refcheck"
	"github.com/mesworks/shopsched/internal/services/routes"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/logger"
)

const defaultRouteVersion = 1

// Service handles product operations
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new product service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// Product represents a manufactured product
type Product struct {
	ID              int64
	Name            string
	UnitPrice       float64
	ProfitMargin    float64
	Priority        int
	PenaltyCost     float64
	Enabled         bool
	Created         time.Time
	Updated         time.Time
	OperationRoutes []OperationRoute
}

// OperationRoute is an ordered association between a product and an operation
// type. Unlike line and work center routes it carries no transport time.
type OperationRoute struct {
	ID                int64
	OperationTypeID   int64
	OperationTypeName string
	Order             int
	Version           int
	EffectiveStart    time.Time
	EffectiveEnd      *time.Time
}

// Input carries the caller-supplied fields for create and update. The
// operation type set is optional; an empty set clears the routes.
type Input struct {
	Name             string
	UnitPrice        float64
	ProfitMargin     float64
	Priority         int
	PenaltyCost      float64
	OperationTypeIDs []int64
}

func routeSpec() routes.Spec[OperationRoute] {
	now := time.Now().UTC()
	return routes.Spec[OperationRoute]{
		TargetID: func(r OperationRoute) int64 { return r.OperationTypeID },
		Order:    func(r OperationRoute) int { return r.Order },
		NewRow: func(targetID int64, order int) OperationRoute {
			return OperationRoute{
				OperationTypeID: targetID,
				Order:           order,
				Version:         defaultRouteVersion,
				EffectiveStart:  now,
			}
		},
	}
}

// GetEnabled retrieves all enabled products with their routes resolved
func (s *Service) GetEnabled(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, product_name, unit_price, profit_margin, priority, penalty_cost,
		       enabled, created, updated
		FROM products
		WHERE enabled
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.Errorf("Failed to list products: %v", err)
		return nil, apperrors.Internal("failed to list products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.ProfitMargin, &p.Priority,
			&p.PenaltyCost, &p.Enabled, &p.Created, &p.Updated)
		if err != nil {
			return nil, apperrors.Internal("failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list products", err)
	}

	for i := range products {
		if products[i].OperationRoutes, err = s.loadRoutes(ctx, products[i].ID); err != nil {
			return nil, err
		}
	}

	return products, nil
}

// GetByID retrieves an enabled product by id with its routes resolved
func (s *Service) GetByID(ctx context.Context, id int64) (*Product, error) {
	query := `
		SELECT id, product_name, unit_price, profit_margin, priority, penalty_cost,
		       enabled, created, updated
		FROM products
		WHERE id = $1
	`

	var p Product
	err := s.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.UnitPrice,
		&p.ProfitMargin, &p.Priority, &p.PenaltyCost, &p.Enabled, &p.Created, &p.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product %d not found", id)
		}
		s.logger.Errorf("Failed to get product %d: %v", id, err)
		return nil, apperrors.Internal("failed to get product", err)
	}

	if !p.Enabled {
		return nil, apperrors.NotFound("product %d not found", id)
	}

	if p.OperationRoutes, err = s.loadRoutes(ctx, id); err != nil {
		return nil, err
	}

	return &p, nil
}

// Create creates a new product, reactivating a soft-deleted row when the name
// matches one
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	s.logger.Infof("Creating product: %s", in.Name)

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	id, reactivated, err := s.findByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if reactivated {
		if _, err := tx.Exec(ctx, `DELETE FROM product_operation_routes WHERE product_id = $1`, id); err != nil {
			return nil, apperrors.Internal("failed to clear product routes", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE products
			SET product_name = $1, unit_price = $2, profit_margin = $3, priority = $4,
			    penalty_cost = $5, enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $6
		`, in.Name, in.UnitPrice, in.ProfitMargin, in.Priority, in.PenaltyCost, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate product", err)
		}
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO products (product_name, unit_price, profit_margin, priority, penalty_cost,
			                      enabled, created, updated)
			VALUES ($1, $2, $3, $4, $5, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.Name, in.UnitPrice, in.ProfitMargin, in.Priority, in.PenaltyCost).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create product: %v", err)
			return nil, apperrors.Internal("failed to create product", err)
		}
	}

	diff := routes.Reconcile(nil, in.OperationTypeIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, diff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit product", err)
	}

	if reactivated {
		s.logger.Infof("Reactivated product %d (%s)", id, in.Name)
	}

	return s.GetByID(ctx, id)
}

// Update overlays scalar fields and reconciles the operation routes. An empty
// operation type set clears the routes.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Product, error) {
	s.logger.Infof("Updating product %d", id)

	var currentName string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT product_name, enabled FROM products WHERE id = $1`, id).
		Scan(&currentName, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product %d not found", id)
		}
		return nil, apperrors.Internal("failed to get product", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("product %d is inactive and cannot be updated; create it again to reactivate", id)
	}

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	if !strings.EqualFold(currentName, in.Name) {
		if err := s.checkNameCollision(ctx, in.Name, id); err != nil {
			return nil, err
		}
	}

	existingRoutes, err := s.loadRoutes(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET product_name = $1, unit_price = $2, profit_margin = $3, priority = $4,
		    penalty_cost = $5, updated = CURRENT_TIMESTAMP
		WHERE id = $6
	`, in.Name, in.UnitPrice, in.ProfitMargin, in.Priority, in.PenaltyCost, id)
	if err != nil {
		s.logger.Errorf("Failed to update product %d: %v", id, err)
		return nil, apperrors.Internal("failed to update product", err)
	}

	diff := routes.Reconcile(existingRoutes, in.OperationTypeIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, diff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit product", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes a product. Deleting an already inactive product is a
// no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting product %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM products WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("product %d not found", id)
		}
		return apperrors.Internal("failed to get product", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE products SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete product %d: %v", id, err)
		return apperrors.Internal("failed to delete product", err)
	}

	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("product name is required").
			WithField("name", "name is required")
	}

	// The operation type set is optional for products; only the ids that are
	// present get checked.
	operationTypeIDs := refcheck.Dedupe(in.OperationTypeIDs)
	missing, err := refcheck.MissingEnabled(ctx, s.db, "operation_types", operationTypeIDs)
	if err != nil {
		return apperrors.Internal("failed to validate operation type references", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("operation types not found or inactive: %v", missing).
			WithField("operationTypeIds", fmt.Sprintf("operation types not found or inactive: %v", missing))
	}

	return nil
}

func (s *Service) findByName(ctx context.Context, name string) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM products WHERE LOWER(product_name) = LOWER($1) ORDER BY id
	`, name)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search products by name", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan product", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("a product named %q already exists", name)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search products by name", err)
	}

	return disabledID, haveDisabled, nil
}

func (s *Service) checkNameCollision(ctx context.Context, name string, selfID int64) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM products WHERE LOWER(product_name) = LOWER($1) AND enabled AND id <> $2)
	`, name, selfID).Scan(&exists)
	if err != nil {
		return apperrors.Internal("failed to check product name", err)
	}
	if exists {
		return apperrors.Conflict("a product named %q already exists", name)
	}
	return nil
}

func (s *Service) loadRoutes(ctx context.Context, productID int64) ([]OperationRoute, error) {
	query := `
		SELECT r.id, r.operation_type_id, t.operation_type_name, r.route_order, r.version,
		       r.effective_start, r.effective_end
		FROM product_operation_routes r
		JOIN operation_types t ON t.id = r.operation_type_id
		WHERE r.product_id = $1
		ORDER BY r.route_order
	`

	rows, err := s.db.Query(ctx, query, productID)
	if err != nil {
		return nil, apperrors.Internal("failed to load product routes", err)
	}
	defer rows.Close()

	var result []OperationRoute
	for rows.Next() {
		var r OperationRoute
		err := rows.Scan(&r.ID, &r.OperationTypeID, &r.OperationTypeName, &r.Order,
			&r.Version, &r.EffectiveStart, &r.EffectiveEnd)
		if err != nil {
			return nil, apperrors.Internal("failed to scan product route", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Service) applyRouteDiff(ctx context.Context, tx pgx.Tx, productID int64, diff routes.Result[OperationRoute]) error {
	for _, removed := range diff.Removed {
		if _, err := tx.Exec(ctx, `DELETE FROM product_operation_routes WHERE id = $1`, removed.ID); err != nil {
			return apperrors.Internal("failed to remove product route", err)
		}
	}

	for _, added := range diff.Added {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_operation_routes
				(product_id, operation_type_id, route_order, version, effective_start, effective_end)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, productID, added.OperationTypeID, added.Order, added.Version,
			added.EffectiveStart, added.EffectiveEnd)
		if err != nil {
			s.logger.Errorf("Failed to insert route for product %d: %v", productID, err)
			return apperrors.Internal("failed to insert product route", err)
		}
	}

	return nil
}
