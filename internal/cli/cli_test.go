package cli

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net"
	"os/exec"
	"os/user"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/janus/internal/backup"
	"github.com/ilexum-group/janus/internal/config"
	"github.com/ilexum-group/janus/internal/engine"
	"github.com/ilexum-group/janus/pkg/models"
)

type listPrims struct {
	ifaces []net.Interface
}

func (p listPrims) OSReadFile(string) ([]byte, error)             { return nil, fs.ErrNotExist }
func (p listPrims) OSWriteFile(string, []byte, fs.FileMode) error { return fs.ErrPermission }
func (p listPrims) OSStat(string) (fs.FileInfo, error)            { return nil, fs.ErrNotExist }
func (p listPrims) OSReadDir(string) ([]fs.DirEntry, error)       { return nil, fs.ErrNotExist }
func (p listPrims) OSGetenv(string) string                        { return "" }
func (p listPrims) UserCurrent() (*user.User, error) {
	return &user.User{Uid: "1000", Username: "tester"}, nil
}
func (p listPrims) Geteuid() int { return 1000 }
func (p listPrims) ExecCommand(name string, args ...string) *exec.Cmd {
	return exec.Command("sh", "-c", "exit 1")
}
func (p listPrims) NetInterfaces() ([]net.Interface, error) { return p.ifaces, nil }

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()

	hw, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	prims := listPrims{ifaces: []net.Interface{
		{Index: 1, Name: "eth0", HardwareAddr: hw, Flags: net.FlagUp},
	}}

	store, err := backup.NewStore(t.TempDir(), 0, nil)
	require.NoError(t, err)

	stdout := &bytes.Buffer{}
	app := &App{
		Config:  &config.Config{RequireThreeStage: true},
		Engine:  engine.NewBaseWithPrimitives("linux", prims),
		Backups: store,
		Stdin:   strings.NewReader(""),
		Stdout:  stdout,
		Stderr:  &bytes.Buffer{},
	}
	return app, stdout
}

func runCommand(t *testing.T, app *App, args ...string) error {
	t.Helper()
	root := NewRootCmd(app)
	root.SetArgs(args)
	return root.Execute()
}

func TestAdaptersCommandTable(t *testing.T) {
	app, stdout := newTestApp(t)

	require.NoError(t, runCommand(t, app, "adapters"))
	assert.Contains(t, stdout.String(), "eth0")
	assert.Contains(t, stdout.String(), "AA:BB:CC:DD:EE:FF")
}

func TestAdaptersCommandJSON(t *testing.T) {
	app, stdout := newTestApp(t)

	require.NoError(t, runCommand(t, app, "adapters", "--output", "json"))

	var adapters []models.AdapterDescriptor
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &adapters))
	require.Len(t, adapters, 1)
	assert.Equal(t, "eth0", adapters[0].ID)
}

func TestBackupListAndVerifyCommands(t *testing.T) {
	app, stdout := newTestApp(t)

	record, err := app.Backups.Create(models.BackupNetworkConfig, json.RawMessage(`{"adapters":{}}`))
	require.NoError(t, err)

	require.NoError(t, runCommand(t, app, "backup", "list"))
	assert.Contains(t, stdout.String(), record.ID)

	stdout.Reset()
	require.NoError(t, runCommand(t, app, "backup", "verify", record.ID))
	assert.Contains(t, stdout.String(), "verified")
}

func TestBackupVerifyUnknownIDFails(t *testing.T) {
	app, _ := newTestApp(t)
	err := runCommand(t, app, "backup", "verify", "no-such-backup")
	assert.Error(t, err)
}

func TestModifyMACRequiresValueOrRandom(t *testing.T) {
	app, _ := newTestApp(t)
	err := runCommand(t, app, "modify", "mac", "eth0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--value or --random")
}
