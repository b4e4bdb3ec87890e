package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/janus/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLogAndRecentRoundtrip(t *testing.T) {
	store := newTestStore(t)

	record := models.AuditRecord{
		OperationType: models.OpModifyMAC,
		Target:        "eth0",
		Parameters:    map[string]string{"value_source": "generated"},
		Result:        "success",
		RiskLevel:     models.RiskMedium,
		StagesReached: []string{"basic", "risk", "final"},
		BackupID:      "backup-1",
		User:          "root",
		Duration:      1500 * time.Millisecond,
	}
	require.NoError(t, store.Log(record))

	records, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, models.OpModifyMAC, got.OperationType)
	assert.Equal(t, "eth0", got.Target)
	assert.Equal(t, "generated", got.Parameters["value_source"])
	assert.Equal(t, "success", got.Result)
	assert.Empty(t, got.ErrorKind)
	assert.Equal(t, models.RiskMedium, got.RiskLevel)
	assert.Equal(t, []string{"basic", "risk", "final"}, got.StagesReached)
	assert.Equal(t, "backup-1", got.BackupID)
	assert.Equal(t, "root", got.User)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Log(models.AuditRecord{
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			OperationType: models.OpModifyGUID,
			Target:        "machine_guid",
			Result:        "cancelled",
			ErrorKind:     "cancelled",
			RiskLevel:     models.RiskHigh,
			User:          "root",
		}))
	}

	records, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))
}

func TestRecentNoLimitReturnsAll(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Log(models.AuditRecord{
			OperationType: models.OpModifyMAC,
			Target:        "eth0",
			Result:        "failed",
			ErrorKind:     "operation_failed",
			RiskLevel:     models.RiskMedium,
			User:          "root",
		}))
	}

	records, err := store.Recent(0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
