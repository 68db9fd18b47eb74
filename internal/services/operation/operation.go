package operation

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

// Service handles operation CRUD
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new operation service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// Operation is a concrete processing step performed at a work center
type Operation struct {
	ID                  int64
	Name                string
	SetupTimeMinutes    int
	CapacityTonsPerHour float64
	OperationTypeID     int64
	OperationTypeName   string
	WorkCenterID        int64
	WorkCenterName      string
	Enabled             bool
	Created             time.Time
	Updated             time.Time
}

// Input carries the caller-supplied fields for create and update
type Input struct {
	Name                string
	SetupTimeMinutes    int
	CapacityTonsPerHour float64
	OperationTypeID     int64
	WorkCenterID        int64
}

// GetEnabled retrieves all enabled operations with FK names resolved
func (s *Service) GetEnabled(ctx context.Context) ([]Operation, error) {
	query := `
		SELECT o.id, o.operation_name, o.setup_time_minutes, o.capacity_tons_per_hour,
		       o.operation_type_id, t.operation_type_name, o.work_center_id, w.work_center_name,
		       o.enabled, o.created, o.updated
		FROM operations o
		JOIN operation_types t ON t.id = o.operation_type_id
		JOIN work_centers w ON w.id = o.work_center_id
		WHERE o.enabled
		ORDER BY o.id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.Errorf("Failed to list operations: %v", err)
		return nil, apperrors.Internal("failed to list operations", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var o Operation
		err := rows.Scan(&o.ID, &o.Name, &o.SetupTimeMinutes, &o.CapacityTonsPerHour,
			&o.OperationTypeID, &o.OperationTypeName, &o.WorkCenterID, &o.WorkCenterName,
			&o.Enabled, &o.Created, &o.Updated)
		if err != nil {
			return nil, apperrors.Internal("failed to scan operation", err)
		}
		ops = append(ops, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list operations", err)
	}

	return ops, nil
}

// GetByID retrieves an enabled operation by id
func (s *Service) GetByID(ctx context.Context, id int64) (*Operation, error) {
	query := `
		SELECT o.id, o.operation_name, o.setup_time_minutes, o.capacity_tons_per_hour,
		       o.operation_type_id, t.operation_type_name, o.work_center_id, w.work_center_name,
		       o.enabled, o.created, o.updated
		FROM operations o
		JOIN operation_types t ON t.id = o.operation_type_id
		JOIN work_centers w ON w.id = o.work_center_id
		WHERE o.id = $1
	`

	var o Operation
	err := s.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.Name, &o.SetupTimeMinutes,
		&o.CapacityTonsPerHour, &o.OperationTypeID, &o.OperationTypeName,
		&o.WorkCenterID, &o.WorkCenterName, &o.Enabled, &o.Created, &o.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("operation %d not found", id)
		}
		s.logger.Errorf("Failed to get operation %d: %v", id, err)
		return nil, apperrors.Internal("failed to get operation", err)
	}

	if !o.Enabled {
		return nil, apperrors.NotFound("operation %d not found", id)
	}

	return &o, nil
}

// Create creates a new operation, reactivating a soft-deleted row when the
// name matches one
func (s *Service) Create(ctx context.Context, in Input) (*Operation, error) {
	s.logger.Infof("Creating operation: %s", in.Name)

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	id, reactivated, err := s.findByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	if reactivated {
		_, err = s.db.Exec(ctx, `
			UPDATE operations
			SET operation_name = $1, setup_time_minutes = $2, capacity_tons_per_hour = $3,
			    operation_type_id = $4, work_center_id = $5, enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $6
		`, in.Name, in.SetupTimeMinutes, in.CapacityTonsPerHour, in.OperationTypeID, in.WorkCenterID, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate operation", err)
		}
		s.logger.Infof("Reactivated operation %d (%s)", id, in.Name)
	} else {
		err = s.db.QueryRow(ctx, `
			INSERT INTO operations (operation_name, setup_time_minutes, capacity_tons_per_hour,
			                        operation_type_id, work_center_id, enabled, created, updated)
			VALUES ($1, $2, $3, $4, $5, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.Name, in.SetupTimeMinutes, in.CapacityTonsPerHour, in.OperationTypeID, in.WorkCenterID).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create operation: %v", err)
			return nil, apperrors.Internal("failed to create operation", err)
		}
	}

	return s.GetByID(ctx, id)
}

// Update overlays the operation's fields
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Operation, error) {
	s.logger.Infof("Updating operation %d", id)

	var currentName string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT operation_name, enabled FROM operations WHERE id = $1`, id).
		Scan(&currentName, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("operation %d not found", id)
		}
		return nil, apperrors.Internal("failed to get operation", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("operation %d is inactive and cannot be updated; create it again to reactivate", id)
	}

	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	if !strings.EqualFold(currentName, in.Name) {
		var exists bool
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM operations WHERE LOWER(operation_name) = LOWER($1) AND enabled AND id <> $2)
		`, in.Name, id).Scan(&exists)
		if err != nil {
			return nil, apperrors.Internal("failed to check operation name", err)
		}
		if exists {
			return nil, apperrors.Conflict("an operation named %q already exists", in.Name)
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE operations
		SET operation_name = $1, setup_time_minutes = $2, capacity_tons_per_hour = $3,
		    operation_type_id = $4, work_center_id = $5, updated = CURRENT_TIMESTAMP
		WHERE id = $6
	`, in.Name, in.SetupTimeMinutes, in.CapacityTonsPerHour, in.OperationTypeID, in.WorkCenterID, id)
	if err != nil {
		s.logger.Errorf("Failed to update operation %d: %v", id, err)
		return nil, apperrors.Internal("failed to update operation", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes an operation. Deleting an already inactive operation is
// a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting operation %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM operations WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("operation %d not found", id)
		}
		return apperrors.Internal("failed to get operation", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE operations SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete operation %d: %v", id, err)
		return apperrors.Internal("failed to delete operation", err)
	}

	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("operation name is required").
			WithField("name", "name is required")
	}

	missing, err := refcheck.MissingEnabled(ctx, s.db, "operation_types", []int64{in.OperationTypeID})
	if err != nil {
		return apperrors.Internal("failed to validate operation type reference", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("operation type not found or inactive: %d", in.OperationTypeID).
			WithField("operationTypeId", fmt.Sprintf("operation type not found or inactive: %d", in.OperationTypeID))
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

func (s *Service) findByName(ctx context.Context, name string) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM operations WHERE LOWER(operation_name) = LOWER($1) ORDER BY id
	`, name)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search operations by name", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan operation", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("an operation named %q already exists", name)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search operations by name", err)
	}

	return disabledID, haveDisabled, nil
}
