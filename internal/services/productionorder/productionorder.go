package productionorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mesworks/shopsched/internal/services/refcheck"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/logger"
)

// Service handles production order records. Orders are plain data; nothing in
// the system consumes them to place work on lines.
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new production order service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// ProductionOrder is an order header with its line items
type ProductionOrder struct {
	ID            int64
	OrderNumber   string
	EarliestStart time.Time
	Deadline      time.Time
	Enabled       bool
	Created       time.Time
	Updated       time.Time
	Items         []Item
}

// Item is one product/quantity position of an order
type Item struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    float64
}

// ItemInput carries a caller-supplied order position
type ItemInput struct {
	ProductID int64
	Quantity  float64
}

// Input carries the caller-supplied fields for create and update. On update
// the item list fully replaces the persisted one.
type Input struct {
	OrderNumber   string
	EarliestStart time.Time
	Deadline      time.Time
	Items         []ItemInput
}

// GetEnabled retrieves all enabled production orders with their items
func (s *Service) GetEnabled(ctx context.Context) ([]ProductionOrder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_number, earliest_start, deadline, enabled, created, updated
		FROM production_orders
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		s.logger.Errorf("Failed to list production orders: %v", err)
		return nil, apperrors.Internal("failed to list production orders", err)
	}
	defer rows.Close()

	var orders []ProductionOrder
	for rows.Next() {
		var o ProductionOrder
		err := rows.Scan(&o.ID, &o.OrderNumber, &o.EarliestStart, &o.Deadline,
			&o.Enabled, &o.Created, &o.Updated)
		if err != nil {
			return nil, apperrors.Internal("failed to scan production order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list production orders", err)
	}

	for i := range orders {
		if orders[i].Items, err = s.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// GetByID retrieves an enabled production order by id with its items
func (s *Service) GetByID(ctx context.Context, id int64) (*ProductionOrder, error) {
	var o ProductionOrder
	err := s.db.QueryRow(ctx, `
		SELECT id, order_number, earliest_start, deadline, enabled, created, updated
		FROM production_orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.OrderNumber, &o.EarliestStart, &o.Deadline, &o.Enabled, &o.Created, &o.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("production order %d not found", id)
		}
		s.logger.Errorf("Failed to get production order %d: %v", id, err)
		return nil, apperrors.Internal("failed to get production order", err)
	}

	if !o.Enabled {
		return nil, apperrors.NotFound("production order %d not found", id)
	}

	if o.Items, err = s.loadItems(ctx, id); err != nil {
		return nil, err
	}

	return &o, nil
}

// Create creates a new production order, reactivating a soft-deleted row when
// the order number matches one. Reactivation drops the stale items before the
// new ones are written.
func (s *Service) Create(ctx context.Context, in Input) (*ProductionOrder, error) {
	s.logger.Infof("Creating production order: %s", in.OrderNumber)

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	id, reactivated, err := s.findByOrderNumber(ctx, in.OrderNumber)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if reactivated {
		if _, err := tx.Exec(ctx, `DELETE FROM production_order_items WHERE production_order_id = $1`, id); err != nil {
			return nil, apperrors.Internal("failed to clear production order items", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE production_orders
			SET order_number = $1, earliest_start = $2, deadline = $3,
			    enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $4
		`, in.OrderNumber, in.EarliestStart, in.Deadline, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate production order", err)
		}
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO production_orders (order_number, earliest_start, deadline, enabled, created, updated)
			VALUES ($1, $2, $3, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.OrderNumber, in.EarliestStart, in.Deadline).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create production order: %v", err)
			return nil, apperrors.Internal("failed to create production order", err)
		}
	}

	if err := s.insertItems(ctx, tx, id, in.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit production order", err)
	}

	if reactivated {
		s.logger.Infof("Reactivated production order %d (%s)", id, in.OrderNumber)
	}

	return s.GetByID(ctx, id)
}

// Update overlays the header fields and replaces the item list
func (s *Service) Update(ctx context.Context, id int64, in Input) (*ProductionOrder, error) {
	s.logger.Infof("Updating production order %d", id)

	var currentNumber string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT order_number, enabled FROM production_orders WHERE id = $1`, id).
		Scan(&currentNumber, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("production order %d not found", id)
		}
		return nil, apperrors.Internal("failed to get production order", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("production order %d is inactive and cannot be updated; create it again to reactivate", id)
	}

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	if !strings.EqualFold(currentNumber, in.OrderNumber) {
		var exists bool
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM production_orders WHERE LOWER(order_number) = LOWER($1) AND enabled AND id <> $2)
		`, in.OrderNumber, id).Scan(&exists)
		if err != nil {
			return nil, apperrors.Internal("failed to check order number", err)
		}
		if exists {
			return nil, apperrors.Conflict("a production order numbered %q already exists", in.OrderNumber)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE production_orders
		SET order_number = $1, earliest_start = $2, deadline = $3, updated = CURRENT_TIMESTAMP
		WHERE id = $4
	`, in.OrderNumber, in.EarliestStart, in.Deadline, id)
	if err != nil {
		s.logger.Errorf("Failed to update production order %d: %v", id, err)
		return nil, apperrors.Internal("failed to update production order", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM production_order_items WHERE production_order_id = $1`, id); err != nil {
		return nil, apperrors.Internal("failed to clear production order items", err)
	}
	if err := s.insertItems(ctx, tx, id, in.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit production order", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes a production order. Deleting an already inactive order
// is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting production order %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM production_orders WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("production order %d not found", id)
		}
		return apperrors.Internal("failed to get production order", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE production_orders SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete production order %d: %v", id, err)
		return apperrors.Internal("failed to delete production order", err)
	}

	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.OrderNumber) == "" {
		return apperrors.Validation("order number is required").
			WithField("orderNumber", "order number is required")
	}
	if !in.Deadline.IsZero() && !in.EarliestStart.IsZero() && in.Deadline.Before(in.EarliestStart) {
		return apperrors.Validation("deadline must not precede the earliest start").
			WithField("deadline", "deadline must not precede the earliest start")
	}

	productIDs := make([]int64, 0, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return apperrors.Validation("item quantity must be positive").
				WithField(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		productIDs = append(productIDs, item.ProductID)
	}

	missing, err := refcheck.MissingEnabled(ctx, s.db, "products", refcheck.Dedupe(productIDs))
	if err != nil {
		return apperrors.Internal("failed to validate product references", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("products not found or inactive: %v", missing).
			WithField("items", fmt.Sprintf("products not found or inactive: %v", missing))
	}

	return nil
}

func (s *Service) findByOrderNumber(ctx context.Context, number string) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM production_orders WHERE LOWER(order_number) = LOWER($1) ORDER BY id
	`, number)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search production orders by number", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan production order", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("a production order numbered %q already exists", number)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search production orders by number", err)
	}

	return disabledID, haveDisabled, nil
}

func (s *Service) loadItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.product_id, p.product_name, i.quantity
		FROM production_order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.production_order_id = $1
		ORDER BY i.id
	`, orderID)
	if err != nil {
		return nil, apperrors.Internal("failed to load production order items", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity); err != nil {
			return nil, apperrors.Internal("failed to scan production order item", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Service) insertItems(ctx context.Context, tx pgx.Tx, orderID int64, items []ItemInput) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO production_order_items (production_order_id, product_id, quantity)
			VALUES ($1, $2, $3)
		`, orderID, item.ProductID, item.Quantity)
		if err != nil {
			s.logger.Errorf("Failed to insert item for production order %d: %v", orderID, err)
			return apperrors.Internal("failed to insert production order item", err)
		}
	}
	return nil
}
