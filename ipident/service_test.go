package ipident

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/gsequeira/vigiaweb/server/audit"
	"github.com/gsequeira/vigiaweb/server/model"
	"github.com/gsequeira/vigiaweb/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger, _ := zap.NewDevelopment()
	auditSvc := audit.New(db, logger, 0)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	return NewService(db, auditSvc, logger)
}

func TestThreeVisitsSameIdentity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, isNew, err := svc.GetOrCreate(ctx, "10.0.0.5", "agente/1.0", nil)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, 1, first.Visits)
	require.NotEmpty(t, first.Username)

	second, isNew, err := svc.GetOrCreate(ctx, "10.0.0.5", "agente/1.0", nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.Username, second.Username)
	assert.Equal(t, 2, second.Visits)

	third, isNew, err := svc.GetOrCreate(ctx, "10.0.0.5", "agente/2.0", nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.Username, third.Username)
	assert.Equal(t, 3, third.Visits)
	assert.Equal(t, "agente/2.0", third.UserAgent, "user agent follows the latest visit")
}

func TestDistinctIPsGetDistinctIdentities(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.GetOrCreate(ctx, "10.0.0.1", "", nil)
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(ctx, "10.0.0.2", "", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Username, b.Username)
}

func TestGetReadOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "10.9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)

	created, _, err := svc.GetOrCreate(ctx, "10.9.9.9", "", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "10.9.9.9")
	require.NoError(t, err)
	assert.Equal(t, created.Username, got.Username)
	assert.Equal(t, 1, got.Visits, "Get does not count a visit")
}

func TestMetadataLastWriteWins(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.GetOrCreate(ctx, "10.0.0.7", "", map[string]interface{}{
		"os": "Linux", "resolucao": "1920x1080",
	})
	require.NoError(t, err)

	ident, _, err := svc.GetOrCreate(ctx, "10.0.0.7", "", map[string]interface{}{
		"os": "Windows", "idioma": "pt-BR",
	})
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(ident.SystemInfo, &info))
	assert.Equal(t, "Windows", info["os"], "overlapping field takes the latest value")
	assert.Equal(t, "1920x1080", info["resolucao"], "non-overlapping fields survive")
	assert.Equal(t, "pt-BR", info["idioma"])
}

func TestConcurrentFirstContactSingleIdentity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	usernames := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ident, _, err := svc.GetOrCreate(ctx, "172.16.0.9", "", nil)
			errs[i] = err
			if err == nil {
				usernames[i] = ident.Username
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, usernames[0], usernames[i], "every caller sees the same identity")
	}

	var count int64
	svc.db.Model(&model.IPIdentity{}).Where("ip = ?", "172.16.0.9").Count(&count)
	assert.EqualValues(t, 1, count, "one IP never yields two identities")
}

func TestNormalizeIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.0.0.5", "10.0.0.5"},
		{" 10.0.0.5 ", "10.0.0.5"},
		{"10.0.0.5:8080", "10.0.0.5"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:DB8:0:0:0:0:0:1", "2001:db8::1"},
		{"fe80::1%eth0", "fe80::1"},
		{"nao-e-ip", "nao-e-ip"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeIP(tc.in), "input %q", tc.in)
	}
}

func TestPortVariantsCollapse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.GetOrCreate(ctx, "192.168.1.10:55001", "", nil)
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(ctx, "192.168.1.10:55002", "", nil)
	require.NoError(t, err)

	assert.Equal(t, a.Username, b.Username)
	assert.Equal(t, 2, b.Visits)
}

func TestList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, ip := range []string{"10.1.0.1", "10.1.0.2", "10.1.0.3"} {
		_, _, err := svc.GetOrCreate(ctx, ip, "", nil)
		require.NoError(t, err)
	}

	idents, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, idents, 2)

	idents, err = svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, idents, 3)
}
