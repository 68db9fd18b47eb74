package operationtype

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/logger"
)

// Service handles operation type operations
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new operation type service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// OperationType is a named category referenced by routes and operations
type OperationType struct {
	ID      int64
	Name    string
	Enabled bool
	Created time.Time
	Updated time.Time
}

// Input carries the caller-supplied fields for create and update
type Input struct {
	Name string
}

// GetEnabled retrieves all enabled operation types
func (s *Service) GetEnabled(ctx context.Context) ([]OperationType, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, operation_type_name, enabled, created, updated
		FROM operation_types
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		s.logger.Errorf("Failed to list operation types: %v", err)
		return nil, apperrors.Internal("failed to list operation types", err)
	}
	defer rows.Close()

	var types []OperationType
	for rows.Next() {
		var t OperationType
		if err := rows.Scan(&t.ID, &t.Name, &t.Enabled, &t.Created, &t.Updated); err != nil {
			return nil, apperrors.Internal("failed to scan operation type", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list operation types", err)
	}

	return types, nil
}

// GetByID retrieves an enabled operation type by id
func (s *Service) GetByID(ctx context.Context, id int64) (*OperationType, error) {
	var t OperationType
	err := s.db.QueryRow(ctx, `
		SELECT id, operation_type_name, enabled, created, updated
		FROM operation_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Enabled, &t.Created, &t.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("operation type %d not found", id)
		}
		s.logger.Errorf("Failed to get operation type %d: %v", id, err)
		return nil, apperrors.Internal("failed to get operation type", err)
	}

	if !t.Enabled {
		return nil, apperrors.NotFound("operation type %d not found", id)
	}

	return &t, nil
}

// Create creates a new operation type, reactivating a soft-deleted row when
// the name matches one
func (s *Service) Create(ctx context.Context, in Input) (*OperationType, error) {
	s.logger.Infof("Creating operation type: %s", in.Name)

	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Validation("operation type name is required").
			WithField("name", "name is required")
	}

	id, reactivated, err := s.findByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	if reactivated {
		_, err = s.db.Exec(ctx, `
			UPDATE operation_types
			SET operation_type_name = $1, enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $2
		`, in.Name, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate operation type", err)
		}
		s.logger.Infof("Reactivated operation type %d (%s)", id, in.Name)
	} else {
		err = s.db.QueryRow(ctx, `
			INSERT INTO operation_types (operation_type_name, enabled, created, updated)
			VALUES ($1, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.Name).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create operation type: %v", err)
			return nil, apperrors.Internal("failed to create operation type", err)
		}
	}

	return s.GetByID(ctx, id)
}

// Update renames an operation type
func (s *Service) Update(ctx context.Context, id int64, in Input) (*OperationType, error) {
	s.logger.Infof("Updating operation type %d", id)

	var currentName string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT operation_type_name, enabled FROM operation_types WHERE id = $1`, id).
		Scan(&currentName, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("operation type %d not found", id)
		}
		return nil, apperrors.Internal("failed to get operation type", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("operation type %d is inactive and cannot be updated; create it again to reactivate", id)
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Validation("operation type name is required").
			WithField("name", "name is required")
	}

	if !strings.EqualFold(currentName, in.Name) {
		var exists bool
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM operation_types WHERE LOWER(operation_type_name) = LOWER($1) AND enabled AND id <> $2)
		`, in.Name, id).Scan(&exists)
		if err != nil {
			return nil, apperrors.Internal("failed to check operation type name", err)
		}
		if exists {
			return nil, apperrors.Conflict("an operation type named %q already exists", in.Name)
		}
	}

	_, err = s.db.Exec(ctx, `
		UPDATE operation_types
		SET operation_type_name = $1, updated = CURRENT_TIMESTAMP
		WHERE id = $2
	`, in.Name, id)
	if err != nil {
		s.logger.Errorf("Failed to update operation type %d: %v", id, err)
		return nil, apperrors.Internal("failed to update operation type", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes an operation type. Deleting an already inactive
// operation type is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting operation type %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM operation_types WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("operation type %d not found", id)
		}
		return apperrors.Internal("failed to get operation type", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE operation_types SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete operation type %d: %v", id, err)
		return apperrors.Internal("failed to delete operation type", err)
	}

	return nil
}

func (s *Service) findByName(ctx context.Context, name string) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM operation_types WHERE LOWER(operation_type_name) = LOWER($1) ORDER BY id
	`, name)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search operation types by name", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan operation type", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("an operation type named %q already exists", name)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search operation types by name", err)
	}

	return disabledID, haveDisabled, nil
}
