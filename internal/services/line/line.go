package line

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

// New work center routes start with version 1 and a transport time the
// planners fill in later.
const (
	defaultRouteVersion        = 1
	defaultTransportTimeMinute = 0
)

// Service handles production line operations
type Service struct {
	db     database.Querier
	logger *logger.Logger
}

// NewService creates a new line service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db.Pool(),
		logger: logger,
	}
}

// Line represents a production line with its route and product associations
type Line struct {
	ID                int64
	Name              string
	Enabled           bool
	Created           time.Time
	Updated           time.Time
	WorkCenterRoutes  []WorkCenterRoute
	AvailableProducts []ProductMembership
}

// WorkCenterRoute is an ordered association between a line and a work center
type WorkCenterRoute struct {
	ID                   int64
	WorkCenterID         int64
	WorkCenterName       string
	Order                int
	Version              int
	TransportTimeMinutes int
	EffectiveStart       time.Time
	EffectiveEnd         *time.Time
}

// ProductMembership marks a product as producible on a line
type ProductMembership struct {
	ID          int64
	ProductID   int64
	ProductName string
}

// Input carries the caller-supplied fields for create and update
type Input struct {
	Name          string
	WorkCenterIDs []int64
	ProductIDs    []int64
}

func routeSpec() routes.Spec[WorkCenterRoute] {
	now := time.Now().UTC()
	return routes.Spec[WorkCenterRoute]{
		TargetID: func(r WorkCenterRoute) int64 { return r.WorkCenterID },
		Order:    func(r WorkCenterRoute) int { return r.Order },
		NewRow: func(targetID int64, order int) WorkCenterRoute {
			return WorkCenterRoute{
				WorkCenterID:         targetID,
				Order:                order,
				Version:              defaultRouteVersion,
				TransportTimeMinutes: defaultTransportTimeMinute,
				EffectiveStart:       now,
			}
		},
	}
}

func membershipSpec() routes.Spec[ProductMembership] {
	return routes.Spec[ProductMembership]{
		TargetID: func(m ProductMembership) int64 { return m.ProductID },
		NewRow: func(targetID int64, _ int) ProductMembership {
			return ProductMembership{ProductID: targetID}
		},
	}
}

// GetEnabled retrieves all enabled lines with their associations resolved
func (s *Service) GetEnabled(ctx context.Context) ([]Line, error) {
	query := `
		SELECT id, line_name, enabled, created, updated
		FROM lines
		WHERE enabled
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.Errorf("Failed to list lines: %v", err)
		return nil, apperrors.Internal("failed to list lines", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Name, &l.Enabled, &l.Created, &l.Updated); err != nil {
			return nil, apperrors.Internal("failed to scan line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list lines", err)
	}

	for i := range lines {
		if err := s.loadAssociations(ctx, &lines[i]); err != nil {
			return nil, err
		}
	}

	return lines, nil
}

// GetByID retrieves an enabled line by id with its associations resolved
func (s *Service) GetByID(ctx context.Context, id int64) (*Line, error) {
	query := `
		SELECT id, line_name, enabled, created, updated
		FROM lines
		WHERE id = $1
	`

	var l Line
	err := s.db.QueryRow(ctx, query, id).Scan(&l.ID, &l.Name, &l.Enabled, &l.Created, &l.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("line %d not found", id)
		}
		s.logger.Errorf("Failed to get line %d: %v", id, err)
		return nil, apperrors.Internal("failed to get line", err)
	}

	if !l.Enabled {
		return nil, apperrors.NotFound("line %d not found", id)
	}

	if err := s.loadAssociations(ctx, &l); err != nil {
		return nil, err
	}

	return &l, nil
}

// Create creates a new line, reactivating a soft-deleted row when the name
// matches one
func (s *Service) Create(ctx context.Context, in Input) (*Line, error) {
	s.logger.Infof("Creating line: %s", in.Name)

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
		// Reactivation clears the stale collections before rebuilding them
		if _, err := tx.Exec(ctx, `DELETE FROM line_work_center_routes WHERE line_id = $1`, id); err != nil {
			return nil, apperrors.Internal("failed to clear line routes", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM products_per_line WHERE line_id = $1`, id); err != nil {
			return nil, apperrors.Internal("failed to clear line products", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE lines
			SET line_name = $1, enabled = true, updated = CURRENT_TIMESTAMP
			WHERE id = $2
		`, in.Name, id)
		if err != nil {
			return nil, apperrors.Internal("failed to reactivate line", err)
		}
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO lines (line_name, enabled, created, updated)
			VALUES ($1, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id
		`, in.Name).Scan(&id)
		if err != nil {
			s.logger.Errorf("Failed to create line: %v", err)
			return nil, apperrors.Internal("failed to create line", err)
		}
	}

	routeDiff := routes.Reconcile(nil, in.WorkCenterIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, routeDiff); err != nil {
		return nil, err
	}

	productDiff := routes.Reconcile(nil, in.ProductIDs, membershipSpec())
	if err := s.applyMembershipDiff(ctx, tx, id, productDiff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit line", err)
	}

	if reactivated {
		s.logger.Infof("Reactivated line %d (%s)", id, in.Name)
	}

	return s.GetByID(ctx, id)
}

// Update overlays scalar fields and reconciles the route and product
// associations against the new target sets
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Line, error) {
	s.logger.Infof("Updating line %d", id)

	var currentName string
	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT line_name, enabled FROM lines WHERE id = $1`, id).
		Scan(&currentName, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("line %d not found", id)
		}
		return nil, apperrors.Internal("failed to get line", err)
	}

	if !enabled {
		return nil, apperrors.Conflict("line %d is inactive and cannot be updated; create it again to reactivate", id)
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
	existingProducts, err := s.loadProducts(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE lines SET line_name = $1, updated = CURRENT_TIMESTAMP WHERE id = $2
	`, in.Name, id)
	if err != nil {
		s.logger.Errorf("Failed to update line %d: %v", id, err)
		return nil, apperrors.Internal("failed to update line", err)
	}

	routeDiff := routes.Reconcile(existingRoutes, in.WorkCenterIDs, routeSpec())
	if err := s.applyRouteDiff(ctx, tx, id, routeDiff); err != nil {
		return nil, err
	}

	productDiff := routes.Reconcile(existingProducts, in.ProductIDs, membershipSpec())
	if err := s.applyMembershipDiff(ctx, tx, id, productDiff); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("failed to commit line", err)
	}

	return s.GetByID(ctx, id)
}

// Delete soft-deletes a line. Deleting an already inactive line is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Infof("Deleting line %d", id)

	var enabled bool
	err := s.db.QueryRow(ctx, `SELECT enabled FROM lines WHERE id = $1`, id).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("line %d not found", id)
		}
		return apperrors.Internal("failed to get line", err)
	}

	if !enabled {
		return nil
	}

	_, err = s.db.Exec(ctx, `
		UPDATE lines SET enabled = false, updated = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		s.logger.Errorf("Failed to delete line %d: %v", id, err)
		return apperrors.Internal("failed to delete line", err)
	}

	return nil
}

func (s *Service) validateInput(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("line name is required").
			WithField("name", "name is required")
	}

	workCenterIDs := refcheck.Dedupe(in.WorkCenterIDs)
	if len(workCenterIDs) == 0 {
		return apperrors.Validation("a line requires at least one work center").
			WithField("workCenterIds", "at least one work center is required")
	}

	missing, err := refcheck.MissingEnabled(ctx, s.db, "work_centers", workCenterIDs)
	if err != nil {
		return apperrors.Internal("failed to validate work center references", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("work centers not found or inactive: %v", missing).
			WithField("workCenterIds", fmt.Sprintf("work centers not found or inactive: %v", missing))
	}

	productIDs := refcheck.Dedupe(in.ProductIDs)
	missing, err = refcheck.MissingEnabled(ctx, s.db, "products", productIDs)
	if err != nil {
		return apperrors.Internal("failed to validate product references", err)
	}
	if len(missing) > 0 {
		return apperrors.Validation("products not found or inactive: %v", missing).
			WithField("productIds", fmt.Sprintf("products not found or inactive: %v", missing))
	}

	return nil
}

// findByName locates a name match case-insensitively. An enabled match is a
// conflict; a disabled match is the reactivation candidate.
func (s *Service) findByName(ctx context.Context, name string) (id int64, reactivate bool, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, enabled FROM lines WHERE LOWER(line_name) = LOWER($1) ORDER BY id
	`, name)
	if err != nil {
		return 0, false, apperrors.Internal("failed to search lines by name", err)
	}
	defer rows.Close()

	var disabledID int64
	var haveDisabled bool
	for rows.Next() {
		var rowID int64
		var enabled bool
		if err := rows.Scan(&rowID, &enabled); err != nil {
			return 0, false, apperrors.Internal("failed to scan line", err)
		}
		if enabled {
			return 0, false, apperrors.Conflict("a line named %q already exists", name)
		}
		if !haveDisabled {
			disabledID = rowID
			haveDisabled = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, apperrors.Internal("failed to search lines by name", err)
	}

	return disabledID, haveDisabled, nil
}

func (s *Service) checkNameCollision(ctx context.Context, name string, selfID int64) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM lines WHERE LOWER(line_name) = LOWER($1) AND enabled AND id <> $2)
	`, name, selfID).Scan(&exists)
	if err != nil {
		return apperrors.Internal("failed to check line name", err)
	}
	if exists {
		return apperrors.Conflict("a line named %q already exists", name)
	}
	return nil
}

func (s *Service) loadRoutes(ctx context.Context, lineID int64) ([]WorkCenterRoute, error) {
	query := `
		SELECT r.id, r.work_center_id, w.work_center_name, r.route_order, r.version,
		       r.transport_time_minutes, r.effective_start, r.effective_end
		FROM line_work_center_routes r
		JOIN work_centers w ON w.id = r.work_center_id
		WHERE r.line_id = $1
		ORDER BY r.route_order
	`

	rows, err := s.db.Query(ctx, query, lineID)
	if err != nil {
		return nil, apperrors.Internal("failed to load line routes", err)
	}
	defer rows.Close()

	var result []WorkCenterRoute
	for rows.Next() {
		var r WorkCenterRoute
		err := rows.Scan(&r.ID, &r.WorkCenterID, &r.WorkCenterName, &r.Order, &r.Version,
			&r.TransportTimeMinutes, &r.EffectiveStart, &r.EffectiveEnd)
		if err != nil {
			return nil, apperrors.Internal("failed to scan line route", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Service) loadProducts(ctx context.Context, lineID int64) ([]ProductMembership, error) {
	query := `
		SELECT m.id, m.product_id, p.product_name
		FROM products_per_line m
		JOIN products p ON p.id = m.product_id
		WHERE m.line_id = $1
		ORDER BY m.id
	`

	rows, err := s.db.Query(ctx, query, lineID)
	if err != nil {
		return nil, apperrors.Internal("failed to load line products", err)
	}
	defer rows.Close()

	var result []ProductMembership
	for rows.Next() {
		var m ProductMembership
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName); err != nil {
			return nil, apperrors.Internal("failed to scan line product", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Service) loadAssociations(ctx context.Context, l *Line) error {
	var err error
	if l.WorkCenterRoutes, err = s.loadRoutes(ctx, l.ID); err != nil {
		return err
	}
	if l.AvailableProducts, err = s.loadProducts(ctx, l.ID); err != nil {
		return err
	}
	return nil
}

func (s *Service) applyRouteDiff(ctx context.Context, tx pgx.Tx, lineID int64, diff routes.Result[WorkCenterRoute]) error {
	for _, removed := range diff.Removed {
		if _, err := tx.Exec(ctx, `DELETE FROM line_work_center_routes WHERE id = $1`, removed.ID); err != nil {
			return apperrors.Internal("failed to remove line route", err)
		}
	}

	for _, added := range diff.Added {
		_, err := tx.Exec(ctx, `
			INSERT INTO line_work_center_routes
				(line_id, work_center_id, route_order, version, transport_time_minutes, effective_start, effective_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, lineID, added.WorkCenterID, added.Order, added.Version,
			added.TransportTimeMinutes, added.EffectiveStart, added.EffectiveEnd)
		if err != nil {
			s.logger.Errorf("Failed to insert route for line %d: %v", lineID, err)
			return apperrors.Internal("failed to insert line route", err)
		}
	}

	return nil
}

func (s *Service) applyMembershipDiff(ctx context.Context, tx pgx.Tx, lineID int64, diff routes.Result[ProductMembership]) error {
	for _, removed := range diff.Removed {
		if _, err := tx.Exec(ctx, `DELETE FROM products_per_line WHERE id = $1`, removed.ID); err != nil {
			return apperrors.Internal("failed to remove line product", err)
		}
	}

	for _, added := range diff.Added {
		_, err := tx.Exec(ctx, `
			INSERT INTO products_per_line (line_id, product_id) VALUES ($1, $2)
		`, lineID, added.ProductID)
		if err != nil {
			return apperrors.Internal("failed to insert line product", err)
		}
	}

	return nil
}
