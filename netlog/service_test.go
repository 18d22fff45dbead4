package netlog

import (
	"context"
	"testing"
	"time"

	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewService(testutil.SetupTestDB(t), logger)
}

func TestRecordBatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	deviceID := int64(1)
	n, err := svc.RecordBatch(ctx, []ConnectionInput{
		{SrcIP: "192.168.0.10", DstIP: "8.8.8.8", SrcPort: 51000, DstPort: 443, Protocol: "TCP", Process: "chrome"},
		{SrcIP: "192.168.0.10", DstIP: "1.1.1.1", SrcPort: 51001, DstPort: 53, Protocol: "UDP"},
		{SrcIP: "192.168.0.10", DstIP: "10.0.0.1", SrcPort: 51002, DstPort: 22},
	}, &deviceID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var rows []model.Connection
	require.NoError(t, svc.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, "TCP", rows[2].Protocol, "protocol defaults to TCP")
	assert.Equal(t, "ESTABLISHED", rows[2].Status, "status defaults to ESTABLISHED")
	require.NotNil(t, rows[0].DeviceID)
	assert.Equal(t, deviceID, *rows[0].DeviceID)
}

func TestRecordBatchEmpty(t *testing.T) {
	svc := newTestService(t)

	n, err := svc.RecordBatch(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	devA, devB := int64(1), int64(2)
	clientX := int64(10)
	_, err := svc.RecordBatch(ctx, []ConnectionInput{
		{SrcIP: "10.0.0.1", DstIP: "8.8.8.8"},
		{SrcIP: "10.0.0.1", DstIP: "8.8.4.4"},
	}, &devA, &clientX)
	require.NoError(t, err)
	_, err = svc.RecordBatch(ctx, []ConnectionInput{
		{SrcIP: "10.0.0.2", DstIP: "8.8.8.8"},
	}, &devB, nil)
	require.NoError(t, err)

	res, err := svc.List(ctx, ListQuery{DeviceID: devA})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = svc.List(ctx, ListQuery{ClientID: clientX})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = svc.List(ctx, ListQuery{DeviceID: devB})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)

	total, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestListTimeRange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	old := model.Connection{SrcIP: "10.0.0.1", DstIP: "8.8.8.8", SeenAt: time.Now().Add(-2 * time.Hour)}
	recent := model.Connection{SrcIP: "10.0.0.1", DstIP: "8.8.4.4", SeenAt: time.Now()}
	require.NoError(t, svc.db.Create(&old).Error)
	require.NoError(t, svc.db.Create(&recent).Error)

	from := time.Now().Add(-time.Hour)
	res, err := svc.List(ctx, ListQuery{From: &from})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, "8.8.4.4", res.Connections[0].DstIP)

	to := time.Now().Add(-time.Hour)
	res, err = svc.List(ctx, ListQuery{To: &to})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, "8.8.8.8", res.Connections[0].DstIP)
}

func TestListPagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	batch := make([]ConnectionInput, 5)
	for i := range batch {
		batch[i] = ConnectionInput{SrcIP: "10.0.0.1", DstIP: "8.8.8.8", SrcPort: 50000 + i}
	}
	_, err := svc.RecordBatch(ctx, batch, nil, nil)
	require.NoError(t, err)

	res, err := svc.List(ctx, ListQuery{PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, res.Connections, 2)
	assert.Equal(t, 3, res.Pages)

	res, err = svc.List(ctx, ListQuery{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, res.Connections, 1)
}
