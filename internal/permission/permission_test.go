package permission

import (
	"io/fs"
	"net"
	"os/exec"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/janus/pkg/models"
)

type fakePrims struct {
	euid        int
	commandFail bool
	userErr     bool
}

func (f fakePrims) OSReadFile(string) ([]byte, error)             { return nil, fs.ErrNotExist }
func (f fakePrims) OSWriteFile(string, []byte, fs.FileMode) error { return nil }
func (f fakePrims) OSStat(string) (fs.FileInfo, error)            { return nil, fs.ErrNotExist }
func (f fakePrims) OSReadDir(string) ([]fs.DirEntry, error)       { return nil, fs.ErrNotExist }
func (f fakePrims) OSGetenv(string) string                        { return "" }

func (f fakePrims) UserCurrent() (*user.User, error) {
	if f.userErr {
		return nil, fs.ErrPermission
	}
	return &user.User{Uid: "1000", Username: "operator"}, nil
}

func (f fakePrims) Geteuid() int { return f.euid }

func (f fakePrims) ExecCommand(name string, args ...string) *exec.Cmd {
	if f.commandFail {
		return exec.Command("sh", "-c", "exit 2")
	}
	return exec.Command("sh", "-c", "exit 0")
}

func (f fakePrims) NetInterfaces() ([]net.Interface, error) { return nil, nil }

func TestRootHasPrivilegeOnUnix(t *testing.T) {
	gate := NewGateWithPrimitives("linux", fakePrims{euid: 0})
	ok, err := gate.HasPrivilege(models.OpModifyMAC)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonRootLacksPrivilegeOnUnix(t *testing.T) {
	gate := NewGateWithPrimitives("linux", fakePrims{euid: 1000})
	for _, op := range []models.OperationType{
		models.OpModifyMAC, models.OpModifyGUID, models.OpModifyVolumeSerial,
	} {
		ok, err := gate.HasPrivilege(op)
		require.NoError(t, err)
		assert.False(t, ok, string(op))
	}
}

func TestWindowsAdminProbe(t *testing.T) {
	gate := NewGateWithPrimitives("windows", fakePrims{commandFail: false})
	ok, err := gate.HasPrivilege(models.OpModifyGUID)
	require.NoError(t, err)
	assert.True(t, ok)

	gate = NewGateWithPrimitives("windows", fakePrims{commandFail: true})
	ok, err = gate.HasPrivilege(models.OpModifyGUID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribePrivilegeGap(t *testing.T) {
	assert.Contains(t, NewGateWithPrimitives("linux", fakePrims{}).DescribePrivilegeGap(), "sudo")
	assert.Contains(t, NewGateWithPrimitives("windows", fakePrims{}).DescribePrivilegeGap(), "administrator")
}

func TestCurrentUser(t *testing.T) {
	assert.Equal(t, "operator", NewGateWithPrimitives("linux", fakePrims{}).CurrentUser())
	assert.Equal(t, "unknown", NewGateWithPrimitives("linux", fakePrims{userErr: true}).CurrentUser())
}
