package line

import (
	"context"
	"testing"
	"time"

	"github.com/mesworks/shopsched/internal/services/servicetest"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *servicetest.FakeDB) {
	db := servicetest.New(t)
	log := logger.New("line-test", "test")
	log.DisableConsoleOutput()
	return &Service{db: db, logger: log}, db
}

// Creating a line whose name matches a soft-deleted row must bring that row
// back instead of inserting a new one, so the id survives the delete/create
// cycle.
func TestCreateReactivatesSoftDeletedName(t *testing.T) {
	svc, db := newTestService(t)
	now := time.Now().UTC()

	db.ExpectQuery("FROM work_centers", []any{int64(10)}, []any{int64(11)})
	db.ExpectQuery("FROM lines WHERE LOWER(line_name)", []any{int64(7), false})
	db.ExpectBegin()
	db.ExpectExec("DELETE FROM line_work_center_routes")
	db.ExpectExec("DELETE FROM products_per_line")
	db.ExpectExec("UPDATE lines")
	db.ExpectExec("INSERT INTO line_work_center_routes")
	db.ExpectExec("INSERT INTO line_work_center_routes")
	db.ExpectCommit()
	db.ExpectRow("FROM lines", int64(7), "L1", true, now, now)
	db.ExpectQuery("FROM line_work_center_routes",
		[]any{int64(31), int64(10), "Cutting", 1, 1, 0, now, nil},
		[]any{int64(32), int64(11), "Welding", 2, 1, 0, now, nil})
	db.ExpectQuery("FROM products_per_line")

	created, err := svc.Create(context.Background(), Input{
		Name:          "L1",
		WorkCenterIDs: []int64{10, 11},
	})
	require.NoError(t, err)
	db.AssertDone()

	assert.Equal(t, int64(7), created.ID, "the soft-deleted row must be reused")
	assert.Empty(t, db.Statements("INSERT INTO lines"), "reactivation must not insert a new row")

	inserts := db.Statements("INSERT INTO line_work_center_routes")
	require.Len(t, inserts, 2)
	assert.Equal(t, int64(10), inserts[0].Args[1])
	assert.Equal(t, 1, inserts[0].Args[2])
	assert.Equal(t, int64(11), inserts[1].Args[1])
	assert.Equal(t, 2, inserts[1].Args[2])

	require.Len(t, created.WorkCenterRoutes, 2)
	assert.Equal(t, int64(10), created.WorkCenterRoutes[0].WorkCenterID)
	assert.Equal(t, int64(11), created.WorkCenterRoutes[1].WorkCenterID)
}

// Name uniqueness only counts enabled rows, and the comparison ignores case.
func TestCreateRejectsEnabledDuplicateName(t *testing.T) {
	svc, db := newTestService(t)

	db.ExpectQuery("FROM work_centers", []any{int64(10)})
	db.ExpectQuery("FROM lines WHERE LOWER(line_name)", []any{int64(4), true})

	_, err := svc.Create(context.Background(), Input{Name: "l1", WorkCenterIDs: []int64{10}})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	db.AssertDone()
}

func TestCreateRequiresWorkCenters(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.Create(context.Background(), Input{Name: "L1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, apperrors.FieldsOf(err), "workCenterIds")
	db.AssertDone()
}
