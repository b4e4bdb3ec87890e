package orchestrator

import (
	"fmt"
	"io/fs"
	"net"
	"os/exec"
	"os/user"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/janus/internal/backup"
	"github.com/ilexum-group/janus/internal/confirm"
	"github.com/ilexum-group/janus/internal/engine"
	"github.com/ilexum-group/janus/internal/permission"
	"github.com/ilexum-group/janus/pkg/models"
)

// fakePrims satisfies engine.SystemPrimitives without touching the host.
type fakePrims struct {
	euid int
}

func (f fakePrims) OSReadFile(string) ([]byte, error) { return nil, fs.ErrNotExist }
func (f fakePrims) OSWriteFile(string, []byte, fs.FileMode) error {
	return fs.ErrPermission
}
func (f fakePrims) OSStat(string) (fs.FileInfo, error)      { return nil, fs.ErrNotExist }
func (f fakePrims) OSReadDir(string) ([]fs.DirEntry, error) { return nil, fs.ErrNotExist }
func (f fakePrims) OSGetenv(string) string                  { return "" }
func (f fakePrims) UserCurrent() (*user.User, error) {
	return &user.User{Uid: "1000", Username: "tester"}, nil
}
func (f fakePrims) Geteuid() int { return f.euid }
func (f fakePrims) ExecCommand(name string, args ...string) *exec.Cmd {
	return exec.Command("false")
}
func (f fakePrims) NetInterfaces() ([]net.Interface, error) { return nil, nil }

// fakeEngine holds identifier state in memory.
type fakeEngine struct {
	*engine.Base
	macs      map[string]string
	guid      string
	serials   map[string]string
	supported []models.OperationType
	writeErr  error
	skipApply bool
	writes    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		Base: engine.NewBaseWithPrimitives("linux", fakePrims{euid: 0}),
		macs: map[string]string{
			"eth0":  "AA:BB:CC:DD:EE:FF",
			"wlan0": "11:22:33:44:55:66",
		},
		guid:      "4c4c4544-0050-3710-8058-b4c04f535732",
		serials:   map[string]string{"/dev/sda1": "ABCD1234"},
		supported: []models.OperationType{models.OpModifyMAC, models.OpModifyGUID},
	}
}

func (f *fakeEngine) EnumerateAdapters() ([]models.AdapterDescriptor, error) {
	ids := make([]string, 0, len(f.macs))
	for id := range f.macs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	adapters := make([]models.AdapterDescriptor, 0, len(ids))
	for _, id := range ids {
		adapters = append(adapters, models.AdapterDescriptor{
			ID:         id,
			Name:       id,
			MACAddress: f.macs[id],
			Status:     models.StatusConnected,
			Type:       models.AdapterEthernet,
			IsPhysical: true,
		})
	}
	return adapters, nil
}

func (f *fakeEngine) ReadMAC(adapterID string) (string, error) {
	mac, ok := f.macs[adapterID]
	if !ok {
		return "", fmt.Errorf("%w: adapter %q", engine.ErrNotFound, adapterID)
	}
	return mac, nil
}

func (f *fakeEngine) ReadMachineGUID() (string, error) { return f.guid, nil }

func (f *fakeEngine) ReadVolumeSerials() (map[string]string, error) { return f.serials, nil }

func (f *fakeEngine) WriteMAC(adapterID, mac string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, "mac:"+adapterID)
	if !f.skipApply {
		f.macs[adapterID] = mac
	}
	return nil
}

func (f *fakeEngine) WriteMachineGUID(guid string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, "guid")
	if !f.skipApply {
		f.guid = guid
	}
	return nil
}

func (f *fakeEngine) SupportedOperations() []models.OperationType { return f.supported }

// approvePrompter approves every stage, optionally observing each prompt.
type approvePrompter struct {
	declineAt confirm.Stage
	onStage   func(confirm.Stage)
}

func (p *approvePrompter) Confirm(stage confirm.Stage, op *models.Operation) (models.ConfirmationResult, error) {
	if p.onStage != nil {
		p.onStage(stage)
	}
	if p.declineAt != "" && stage == p.declineAt {
		return models.ConfirmationResult{Confirmed: false}, nil
	}
	return models.ConfirmationResult{Confirmed: true}, nil
}

// recordingSink captures audit records in memory.
type recordingSink struct {
	records []models.AuditRecord
}

func (s *recordingSink) Log(record models.AuditRecord) error {
	s.records = append(s.records, record)
	return nil
}

type fixture struct {
	engine *fakeEngine
	store  *backup.Store
	sink   *recordingSink
	orch   *Orchestrator
}

func newFixture(t *testing.T, prompter confirm.Prompter) *fixture {
	t.Helper()
	eng := newFakeEngine()
	store, err := backup.NewStore(t.TempDir(), 0, nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	perms := permission.NewGateWithPrimitives("linux", fakePrims{euid: 0})
	gate := confirm.NewGate(prompter, 0, true, nil)

	return &fixture{
		engine: eng,
		store:  store,
		sink:   sink,
		orch:   New(eng, perms, store, gate, sink, nil),
	}
}

func TestModifyMACSucceeds(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de-ad-be-ef-00-01",
	})

	require.True(t, result.Success, result.Message)
	assert.Empty(t, result.ErrorKind)
	assert.NotEmpty(t, result.BackupID)
	assert.Equal(t, "DE:AD:BE:EF:00:01", fx.engine.macs["eth0"])

	// The snapshot holds the pre-mutation MAC.
	_, payload, err := fx.store.Restore(result.BackupID)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "AA:BB:CC:DD:EE:FF")

	require.Len(t, fx.sink.records, 1)
	record := fx.sink.records[0]
	assert.Equal(t, "success", record.Result)
	assert.Equal(t, []string{"basic", "risk", "final"}, record.StagesReached)
	assert.Equal(t, "tester", record.User)
}

func TestBackupExistsBeforeConfirmation(t *testing.T) {
	var fx *fixture
	var backupsAtPrompt int
	var writesAtPrompt int

	prompter := &approvePrompter{onStage: func(confirm.Stage) {
		records, err := fx.store.List("")
		require.NoError(t, err)
		backupsAtPrompt = len(records)
		writesAtPrompt = len(fx.engine.writes)
	}}
	fx = newFixture(t, prompter)

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	require.True(t, result.Success)
	assert.Equal(t, 1, backupsAtPrompt)
	assert.Zero(t, writesAtPrompt)
}

func TestDeclineCancelsWithoutWriting(t *testing.T) {
	fx := newFixture(t, &approvePrompter{declineAt: confirm.StageRisk})

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindCancelled, result.ErrorKind)
	assert.Empty(t, fx.engine.writes)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", fx.engine.macs["eth0"])

	// The snapshot taken before the prompt is kept.
	records, err := fx.store.List("")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.Len(t, fx.sink.records, 1)
	assert.Equal(t, "cancelled", fx.sink.records[0].Result)
	assert.Equal(t, []string{"basic", "risk"}, fx.sink.records[0].StagesReached)
}

func TestInvalidMACFailsValidationBeforeBackup(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "zz:zz:zz:zz:zz:zz",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindValidation, result.ErrorKind)

	records, err := fx.store.List("")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, fx.engine.writes)
}

func TestUnsupportedOperationRefused(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyVolumeSerial,
		Target:        "/dev/sda1",
		ProposedValue: "ABCD1234",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindUnsupported, result.ErrorKind)
	assert.Empty(t, fx.engine.writes)
}

func TestMissingPrivilegeRefusedBeforeBackup(t *testing.T) {
	eng := newFakeEngine()
	store, err := backup.NewStore(t.TempDir(), 0, nil)
	require.NoError(t, err)
	perms := permission.NewGateWithPrimitives("linux", fakePrims{euid: 1000})
	gate := confirm.NewGate(&approvePrompter{}, 0, true, nil)
	orch := New(eng, perms, store, gate, nil, nil)

	result := orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindPermission, result.ErrorKind)
	assert.Contains(t, result.Message, "sudo")

	records, err := store.List("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUnknownAdapterFailsDuringSnapshot(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth9",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindBackup, result.ErrorKind)
	assert.Empty(t, fx.engine.writes)
}

func TestSilentWriteFailureReportsInconsistentState(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})
	fx.engine.skipApply = true

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindInconsistentState, result.ErrorKind)
	assert.NotEmpty(t, result.BackupID)
	assert.Contains(t, result.Message, result.BackupID)
}

func TestDeniedWriteMapsToPermissionError(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})
	fx.engine.writeErr = fmt.Errorf("%w: RTNETLINK answers", engine.ErrPermissionDenied)

	result := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})

	assert.False(t, result.Success)
	assert.Equal(t, KindPermission, result.ErrorKind)
	assert.NotEmpty(t, result.BackupID)
}

func TestEmptyGUIDGeneratesOne(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})
	original := fx.engine.guid

	result := fx.orch.Execute(&models.Operation{
		Type:   models.OpModifyGUID,
		Target: "machine_guid",
	})

	require.True(t, result.Success, result.Message)
	assert.NotEqual(t, original, fx.engine.guid)
	assert.Len(t, fx.engine.guid, 36)

	require.Len(t, fx.sink.records, 1)
	assert.Equal(t, "generated", fx.sink.records[0].Parameters["value_source"])
}

func TestRestorePutsMACBack(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	modified := fx.orch.Execute(&models.Operation{
		Type:          models.OpModifyMAC,
		Target:        "eth0",
		ProposedValue: "de:ad:be:ef:00:01",
	})
	require.True(t, modified.Success)
	require.Equal(t, "DE:AD:BE:EF:00:01", fx.engine.macs["eth0"])

	restored := fx.orch.Restore(modified.BackupID)
	require.True(t, restored.Success, restored.Message)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", fx.engine.macs["eth0"])
}

func TestRestoreUnknownBackup(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})
	result := fx.orch.Restore("missing")
	assert.False(t, result.Success)
	assert.Equal(t, KindBackup, result.ErrorKind)
}

func TestCreateSnapshotKinds(t *testing.T) {
	fx := newFixture(t, &approvePrompter{})

	for _, kind := range []models.BackupKind{
		models.BackupNetworkConfig,
		models.BackupRegistry,
		models.BackupFullSystem,
	} {
		record, err := fx.orch.CreateSnapshot(kind)
		require.NoError(t, err, string(kind))
		assert.Equal(t, kind, record.Kind)
		assert.NoError(t, fx.store.Verify(record.ID))
	}

	_, err := fx.orch.CreateSnapshot("bogus")
	assert.Error(t, err)
}
