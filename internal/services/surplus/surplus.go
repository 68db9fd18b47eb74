package surplus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mesworks/shopsched/internal/services/refcheck"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/logger"
)

// Service handles surplus quantity records keyed by (product, work center)
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new surplus service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// Surplus is a quantity left over for a product at a work center
type Surplus struct {
	ID             int64
	ProductID      int64
	ProductName    string
	WorkCenterID   int64
	WorkCenterName string
	Quantity       float64
	Enabled        bool
	Created        time.Time
	Updated        time.Time
}

// Input carries the caller-supplied fields for create and update
type Input struct {
	ProductID    int64
	WorkCenterID int64
	Quantity     float64
}

// GetEnabled retrieves all enabled surplus records with FK names resolved
func (s *Service) GetEnabled(ctx context.Context) ([]Surplus, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.product_id, p.product_name, r.work_center_id, w.work_center_name,
		       r.quantity, r.enabled, r.created, r.updated
		FROM surplus_per_product_work_center r
		JOIN products p ON p.id = r.product_id
		JOIN work_centers w ON w.id = r.work_center_id
		WHERE r.enabled
		ORDER BY r.id
	`)
	if err != nil {
		s.logger.Errorf("Failed to list surplus records: %v", err)
		return nil, apperrors.Internal("failed to list surplus records", err)
	}
	defer rows.Close()

	var records []Surplus
	for rows.Next() {
		var r Surplus
		err := rows.Scan(&r.ID, &r.ProductID, &r.ProductName, &r.WorkCenterID, &r.WorkCenterName,
			&r.Quantity, &r.Enabled, &r.Created, &r.Updated)
		if err != nil {
			return nil, apperrors.Internal("failed to scan surplus record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list surplus records", err)
	}

	return records, nil
}

// GetByID retrieves an enabled surplus record by id
func (s *Service) GetByID(ctx context.Context, id int64) (*Surplus, error) {
	var r Surplus
	err := s.db.QueryRow(ctx, `
		SELECT r.id, r.product_id, p.product_name, r.work_center_id, w.work_center_name,
		       r.quantity, r.enabled, r.created, r.updated
		FROM surplus_per_product_work_center r
		JOIN products p ON p.id = r.product_id
		JOIN work_centers w ON w.id = r.work_center_id
		WHERE r.id = $1
	`, id).Scan(&r.ID, &r.ProductID, &r.ProductName, &r.WorkCenterID, &r.WorkCenterName,
		&r.Quantity, &r.Enabled, &r.Created, &r.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("surplus record %d not found", id)
		}
		s.logger.Errorf("Failed to get surplus record %d: %v", id, err)
		return nil, apperrors.Internal("failed to get surplus record", err)
	}

	if !r.Enabled {
		return nil, apperrors.NotFound("surplus record %d not found", id)
	}

	return &r, nil
}

// Create creates a surplus record. The (product, work center) pair is unique
// among enabled records; a soft-deleted pair match is reactivated with the new
// quantity.
func (s *Service) Create(ctx context.Context, in Input) (*Surplus, error) {
	s.logger.Infof("Creating surplus record for product %d at work center %d", in.ProductID, in.WorkCenterID)

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	id, reactivated, err := s.findByPair(ctx, in.ProductID, in.WorkCenterID)
	if err != nil {
		return nil, err
	}

	if reactivated {
		_, err = s.db.Exec(ctx, `
			UPDATE surplus_per_product_work_center
			SET quantity = $1, enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $2
		`, in.Quantity, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate surplus record", err)
		}
		s.logger.Infof("Reactivated surplus record %d", id)
	} else {
		err = s.db.QueryRow(ctx, `
			INSERT INTO surplus_per_product_work_center (product_id, work_center_id, quantity, enabled, created, updated)
			VALUES ($1, $2, $3, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.ProductID, in.WorkCenterID, in.Quantity).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create surplus record: %v", err)
			return nil, apperrors.Internal("failed to create surplus record", err)
		}
	}

	return s.GetByID(ctx, id)
}

// Update overlays the record's fields
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Surplus, error) {
	s.logger.Infof("Updating surplus record %d", id)

	var currentProduct, currentWorkCenter int64
	var enabled bool
	err := s.db.QueryRow(ctx, `
		SELECT product_id, work_center_id, enabled FROM surplus_per_product_work_center WHERE id = $1
	`, id).Scan(&currentProduct, &currentWorkCenter, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("surplus record %d not found", id)
		}
		return nil, apperrors.Internal("failed to get surplus record", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("surplus record %d is inactive and cannot be updated; create it again to reactivate", id)
	}

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	if currentProduct != in.ProductID || currentWorkCenter != in.WorkCenterID {
		var exists bool
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM surplus_per_product_work_center
			              WHERE product_id = $1 AND work_center_id = $2 AND enabled AND id <> $3)
		`, in.ProductID, in.WorkCenterID, id).Scan(&exists)
		if err != nil {
			return nil, apperrors.Internal("failed to check surplus pair", err)
		}
		if exists {
			return nil, apperrors.Conflict("a surplus record for product %d at work center %d already exists", in.ProductID, in.WorkCenterID)
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE surplus_per_product_work_center
		SET product_id = $1, work_center_id = $2, quantity = $3, updated = CURRENT_TIMESTAMP
		WHERE id = $4
	`, in.ProductID, in.WorkCenterID, in.Quantity, id)
	if err != nil {
		s.logger.Errorf("Failed to update surplus record %d: %v", id, err)
		return nil, apperrors.Internal("failed to update surplus record", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes a surplus record. Deleting an already inactive record is
// a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting surplus record %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM surplus_per_product_work_center WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("surplus record %d not found", id)
		}
		return apperrors.Internal("failed to get surplus record", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE surplus_per_product_work_center SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete surplus record %d: %v", id, err)
		return apperrors.Internal("failed to delete surplus record", err)
	}

	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if in.Quantity < 0 {
		return apperrors.Validation("quantity must not be negative").
			WithField("quantity", "quantity must not be negative")
	}

	missing, err := refcheck.MissingEnabled(ctx, s.db, "products", []int64{in.ProductID})
	if err != nil {
		return apperrors.Internal("failed to validate product reference", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("product not found or inactive: %d", in.ProductID).
			WithField("productId", fmt.Sprintf("product not found or inactive: %d", in.ProductID))
	}

	missing, err = refcheck.MissingEnabled(ctx, s.db, "work_centers", []int64{in.WorkCenterID})
	if err != nil {
		return apperrors.Internal("failed to validate work center reference", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("work center not found or inactive: %d", in.WorkCenterID).
			WithField("workCenterId", fmt.Sprintf("work center not found or inactive: %d", in.WorkCenterID))
	}

	return nil
}

func (s *Service) findByPair(ctx context.Context, productID, workCenterID int64) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM surplus_per_product_work_center
		WHERE product_id = $1 AND work_center_id = $2
		ORDER BY id
	`, productID, workCenterID)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search surplus records", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan surplus record", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("a surplus record for product %d at work center %d already exists", productID, workCenterID)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search surplus records", err)
	}

	return disabledID, haveDisabled, nil
}
