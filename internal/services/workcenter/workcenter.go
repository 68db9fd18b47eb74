package workcenter

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

const (
	defaultRouteVersion        = 1
	defaultTransportTimeMinute = 0
)

// Service handles work center operations
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new work center service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// WorkCenter represents a work center on a production line
type WorkCenter struct {
	ID               int64
	Name             string
	OptimalBatchSize int
	LineID           int64
	LineName         string
	Enabled          bool
	Created          time.Time
	Updated          time.Time
	OperationRoutes  []OperationRoute
}

// OperationRoute is an ordered association between a work center and an
// operation type
type OperationRoute struct {
	ID                   int64
	OperationTypeID      int64
	OperationTypeName    string
	Order                int
	Version              int
	TransportTimeMinutes int
	EffectiveStart       time.Time
	EffectiveEnd         *time.Time
	Label                *string
}

// Input carries the caller-supplied fields for create and update
type Input struct {
	Name             string
	OptimalBatchSize int
	LineID           int64
	OperationTypeIDs []int64
}

func routeSpec() routes.Spec[OperationRoute] {
	now := time.Now().UTC()
	return routes.Spec[OperationRoute]{
		TargetID: func(r OperationRoute) int64 { return r.OperationTypeID },
		Order:    func(r OperationRoute) int { return r.Order },
		NewRow: func(targetID int64, order int) OperationRoute {
			return OperationRoute{
				OperationTypeID:      targetID,
				Order:                order,
				Version:              defaultRouteVersion,
				TransportTimeMinutes: defaultTransportTimeMinute,
				EffectiveStart:       now,
			}
		},
	}
}

// GetEnabled retrieves all enabled work centers with line names and routes
// resolved
func (s *Service) GetEnabled(ctx context.Context) ([]WorkCenter, error) {
	query := `
		SELECT w.id, w.work_center_name, w.optimal_batch_size, w.line_id, l.line_name,
		       w.enabled, w.created, w.updated
		FROM work_centers w
		JOIN lines l ON l.id = w.line_id
		WHERE w.enabled
		ORDER BY w.id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.Errorf("Failed to list work centers: %v", err)
		return nil, apperrors.Internal("failed to list work centers", err)
	}
	defer rows.Close()

	var centers []WorkCenter
	for rows.Next() {
		var w WorkCenter
		err := rows.Scan(&w.ID, &w.Name, &w.OptimalBatchSize, &w.LineID, &w.LineName,
			&w.Enabled, &w.Created, &w.Updated)
		if err != nil {
			return nil, apperrors.Internal("failed to scan work center", err)
		}
		centers = append(centers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list work centers", err)
	}

	for i := range centers {
		if centers[i].OperationRoutes, err = s.loadRoutes(ctx, centers[i].ID); err != nil {
			return nil, err
		}
	}

	return centers, nil
}

// GetByID retrieves an enabled work center by id with its routes resolved
func (s *Service) GetByID(ctx context.Context, id int64) (*WorkCenter, error) {
	query := `
		SELECT w.id, w.work_center_name, w.optimal_batch_size, w.line_id, l.line_name,
		       w.enabled, w.created, w.updated
		FROM work_centers w
		JOIN lines l ON l.id = w.line_id
		WHERE w.id = $1
	`

	var w WorkCenter
	err := s.db.QueryRow(ctx, query, id).Scan(&w.ID, &w.Name, &w.OptimalBatchSize,
		&w.LineID, &w.LineName, &w.Enabled, &w.Created, &w.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("work center %d not found", id)
		}
		s.logger.Errorf("Failed to get work center %d: %v", id, err)
		return nil, apperrors.Internal("failed to get work center", err)
	}

	if !w.Enabled {
		return nil, apperrors.NotFound("work center %d not found", id)
	}

	if w.OperationRoutes, err = s.loadRoutes(ctx, id); err != nil {
		return nil, err
	}

	return &w, nil
}

// Create creates a new work center, reactivating a soft-deleted row when the
// name matches one
func (s *Service) Create(ctx context.Context, in Input) (*WorkCenter, error) {
	s.logger.Infof("Creating work center: %s", in.Name)

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
		if _, err := tx.Exec(ctx, `DELETE FROM work_center_operation_routes WHERE work_center_id = $1`, id); err != nil {
			return nil, apperrors.Internal("failed to clear work center routes", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE work_centers
			SET work_center_name = $1, optimal_batch_size = $2, line_id = $3,
			    enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $4
		`, in.Name, in.OptimalBatchSize, in.LineID, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate work center", err)
		}
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO work_centers (work_center_name, optimal_batch_size, line_id, enabled, created, updated)
			VALUES ($1, $2, $3, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.Name, in.OptimalBatchSize, in.LineID).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create work center: %v", err)
			return nil, apperrors.Internal("failed to create work center", err)
		}
	}

	diff := routes.Reconcile(nil, in.OperationTypeIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, diff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit work center", err)
	}

	if reactivated {
		s.logger.Infof("Reactivated work center %d (%s)", id, in.Name)
	}

	return s.GetByID(ctx, id)
}

// Update overlays scalar fields and reconciles the operation routes
func (s *Service) Update(ctx context.Context, id int64, in Input) (*WorkCenter, error) {
	s.logger.Infof("Updating work center %d", id)

	var currentName string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT work_center_name, enabled FROM work_centers WHERE id = $1`, id).
		Scan(&currentName, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("work center %d not found", id)
		}
		return nil, apperrors.Internal("failed to get work center", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("work center %d is inactive and cannot be updated; create it again to reactivate", id)
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
		UPDATE work_centers
		SET work_center_name = $1, optimal_batch_size = $2, line_id = $3, updated = CURRENT_TIMESTAMP
		WHERE id = $4
	`, in.Name, in.OptimalBatchSize, in.LineID, id)
	if err != nil {
		s.logger.Errorf("Failed to update work center %d: %v", id, err)
		return nil, apperrors.Internal("failed to update work center", err)
	}

	diff := routes.Reconcile(existingRoutes, in.OperationTypeIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, diff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit work center", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes a work center. Deleting an already inactive work center
// is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting work center %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM work_centers WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("work center %d not found", id)
		}
		return apperrors.Internal("failed to get work center", err)
	}

	if !enabled {
		return nil
	}

	if err := s.checkDeleteDependencies(ctx, id); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE work_centers SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete work center %d: %v", id, err)
		return apperrors.Internal("failed to delete work center", err)
	}

	return nil
}

// checkDeleteDependencies is the extension point for blocking deletion of a
// work center that is still referenced, e.g. by active operations. No rule is
// enforced today.
func (s *Service) checkDeleteDependencies(ctx context.Context, id int64) error {
	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("work center name is required").
			WithField("name", "name is required")
	}

	missing, err := refcheck.MissingEnabled(ctx, s.db, "lines", []int64{in.LineID})
	if err != nil {
		return apperrors.Internal("failed to validate line reference", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("line not found or inactive: %d", in.LineID).
			WithField("lineId", fmt.Sprintf("line not found or inactive: %d", in.LineID))
	}

	operationTypeIDs := refcheck.Dedupe(in.OperationTypeIDs)
	if len(operationTypeIDs) == 0 {
		return apperrors.Validation("a work center requires at least one operation type").
			WithField("operationTypeIds", "at least one operation type is required")
	}

	missing, err = refcheck.MissingEnabled(ctx, s.db, "operation_types", operationTypeIDs)
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
		SELECT id, enabled FROM work_centers WHERE LOWER(work_center_name) = LOWER($1) ORDER BY id
	`, name)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search work centers by name", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan work center", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("a work center named %q already exists", name)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search work centers by name", err)
	}

	return disabledID, haveDisabled, nil
}

func (s *Service) checkNameCollision(ctx context.Context, name string, selfID int64) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM work_centers WHERE LOWER(work_center_name) = LOWER($1) AND enabled AND id <> $2)
	`, name, selfID).Scan(&exists)
	if err != nil {
		return apperrors.Internal("failed to check work center name", err)
	}
	if exists {
		return apperrors.Conflict("a work center named %q already exists", name)
	}
	return nil
}

func (s *Service) loadRoutes(ctx context.Context, workCenterID int64) ([]OperationRoute, error) {
	query := `
		SELECT r.id, r.operation_type_id, t.operation_type_name, r.route_order, r.version,
		       r.transport_time_minutes, r.effective_start, r.effective_end, r.label
		FROM work_center_operation_routes r
		JOIN operation_types t ON t.id = r.operation_type_id
		WHERE r.work_center_id = $1
		ORDER BY r.route_order
	`

	rows, err := s.db.Query(ctx, query, workCenterID)
	if err != nil {
		return nil, apperrors.Internal("failed to load work center routes", err)
	}
	defer rows.Close()

	var result []OperationRoute
	for rows.Next() {
		var r OperationRoute
		err := rows.Scan(&r.ID, &r.OperationTypeID, &r.OperationTypeName, &r.Order, &r.Version,
			&r.TransportTimeMinutes, &r.EffectiveStart, &r.EffectiveEnd, &r.Label)
		if err != nil {
			return nil, apperrors.Internal("failed to scan work center route", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Service) applyRouteDiff(ctx context.Context, tx pgx.Tx, workCenterID int64, diff routes.Result[OperationRoute]) error {
	for _, removed := range diff.Removed {
		if _, err := tx.Exec(ctx, `DELETE FROM work_center_operation_routes WHERE id = $1`, removed.ID); err != nil {
			return apperrors.Internal("failed to remove work center route", err)
		}
	}

	for _, added := range diff.Added {
		_, err := tx.Exec(ctx, `
			INSERT INTO work_center_operation_routes
				(work_center_id, operation_type_id, route_order, version, transport_time_minutes,
				 effective_start, effective_end, label)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, workCenterID, added.OperationTypeID, added.Order, added.Version,
			added.TransportTimeMinutes, added.EffectiveStart, added.EffectiveEnd, added.Label)
		if err != nil {
			s.logger.Errorf("Failed to insert route for work center %d: %v", workCenterID, err)
			return apperrors.Internal("failed to insert work center route", err)
		}
	}

	return nil
}
