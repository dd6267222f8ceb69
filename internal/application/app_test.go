package application

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(k string) string {
		if k == "STORE_DRIVER" {
			return config.DriverMemory
		}
		return env[k]
	})
	require.NoError(t, err)
	return cfg
}

func TestOpenMemory(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	app, err := Open(context.Background(), memoryConfig(t, nil), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Ping)
	assert.NotNil(t, app.Metrics)
	assert.NotNil(t, app.Maintenance)
	require.NoError(t, app.Migrate(context.Background()))

	ctx := core.ContextWithActor(context.Background(), core.Actor{UserID: "coord-1", OrgID: "org-1"})
	res, err := app.Service.Builder.Build(ctx, core.BuildRequest{
		ProgramName:    "Pottery",
		OrganizationID: "org-1",
		CreatedBy:      "coord-1",
		Upload: core.Upload{
			Headers: []string{"Email"},
			Rows:    [][]string{{"amy@example.com"}},
		},
		StandardFields: []string{"email"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsCreated)

	ds, err := app.Service.Records.Dataset(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, now, ds.CreatedAt)

	results, err := app.Maintenance.RecountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.RecountResult{{DatasetID: res.DatasetID, Stored: 1, Actual: 1}}, results)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := memoryConfig(t, nil)
	cfg.Store.Driver = "sqlite"
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}

func TestLimiters(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		enabled bool
	}{
		{"disabled", map[string]string{"RATE_LIMIT_ENABLED": "false"}, false},
		{"memory backend", map[string]string{"RATE_LIMIT_CHECKIN": "2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := Open(context.Background(), memoryConfig(t, tt.env))
			require.NoError(t, err)
			defer app.Close()

			l, err := app.Limiters(context.Background())
			require.NoError(t, err)
			if !tt.enabled {
				assert.Nil(t, l.API)
				assert.Nil(t, l.CheckIn)
				assert.Nil(t, l.Import)
				return
			}

			require.IsType(t, &ratelimit.Memory{}, l.CheckIn)
			for i := 0; i < 2; i++ {
				d, err := l.CheckIn.Allow(context.Background(), "10.0.0.1")
				require.NoError(t, err)
				assert.True(t, d.Allowed)
			}
			d, err := l.CheckIn.Allow(context.Background(), "10.0.0.1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
		})
	}
}
