package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os/exec"
	"os/user"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/janus/pkg/models"
)

// fakePrimitives backs the engines with scripted filesystem and command
// state. Commands are replayed through printf so CombinedOutput sees the
// scripted bytes.
type fakePrimitives struct {
	files    map[string][]byte
	dirs     map[string][]string
	stats    map[string]bool
	env      map[string]string
	outputs  map[string]string
	failures map[string]string
	ifaces   []net.Interface
	euid     int
	written  map[string][]byte
	writeErr error
}

func newFakePrimitives() *fakePrimitives {
	return &fakePrimitives{
		files:    map[string][]byte{},
		dirs:     map[string][]string{},
		stats:    map[string]bool{},
		env:      map[string]string{},
		outputs:  map[string]string{},
		failures: map[string]string{},
		written:  map[string][]byte{},
	}
}

func (f *fakePrimitives) OSReadFile(path string) ([]byte, error) {
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}

func (f *fakePrimitives) OSWriteFile(path string, data []byte, _ fs.FileMode) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[path] = data
	return nil
}

func (f *fakePrimitives) OSStat(path string) (fs.FileInfo, error) {
	if f.stats[path] {
		return nil, nil
	}
	return nil, fs.ErrNotExist
}

type fakeDirEntry struct{ name string }

func (e fakeDirEntry) Name() string               { return e.name }
func (e fakeDirEntry) IsDir() bool                { return true }
func (e fakeDirEntry) Type() fs.FileMode          { return fs.ModeDir }
func (e fakeDirEntry) Info() (fs.FileInfo, error) { return nil, fs.ErrNotExist }

func (f *fakePrimitives) OSReadDir(path string) ([]fs.DirEntry, error) {
	names, ok := f.dirs[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	entries := make([]fs.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fakeDirEntry{name: name})
	}
	return entries, nil
}

func (f *fakePrimitives) OSGetenv(key string) string { return f.env[key] }

func (f *fakePrimitives) UserCurrent() (*user.User, error) {
	return &user.User{Uid: "0", Username: "root"}, nil
}

func (f *fakePrimitives) Geteuid() int { return f.euid }

func (f *fakePrimitives) ExecCommand(name string, args ...string) *exec.Cmd {
	key := strings.Join(append([]string{name}, args...), " ")
	if msg, ok := f.failures[key]; ok {
		return exec.Command("sh", "-c", fmt.Sprintf("printf '%%s' %q; exit 1", msg))
	}
	if output, ok := f.outputs[key]; ok {
		return exec.Command("printf", "%s", output)
	}
	return exec.Command("sh", "-c", "exit 1")
}

func (f *fakePrimitives) NetInterfaces() ([]net.Interface, error) { return f.ifaces, nil }

func TestClassifyInterface(t *testing.T) {
	tests := map[string]models.AdapterType{
		"lo":      models.AdapterLoopback,
		"lo0":     models.AdapterLoopback,
		"wlan0":   models.AdapterWifi,
		"wlp3s0":  models.AdapterWifi,
		"eth0":    models.AdapterEthernet,
		"en0":     models.AdapterEthernet,
		"docker0": models.AdapterVirtual,
		"veth12a": models.AdapterVirtual,
		"utun3":   models.AdapterVirtual,
		"ppp0":    models.AdapterOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, classifyInterface(name), name)
	}
}

func TestClassifyWriteError(t *testing.T) {
	base := errors.New("exit status 1")

	err := classifyWriteError(base, []byte("RTNETLINK answers: Operation not permitted"))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = classifyWriteError(base, []byte("ERROR: Access is denied."))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = classifyWriteError(base, []byte("Cannot find device \"eth9\""))
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "eth9")

	err = classifyWriteError(base, nil)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestBaseEnumerateAdapters(t *testing.T) {
	hw, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	prims := newFakePrimitives()
	prims.ifaces = []net.Interface{
		{Index: 1, Name: "eth0", HardwareAddr: hw, Flags: net.FlagUp},
		{Index: 2, Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
	}
	base := NewBaseWithPrimitives("linux", prims)

	adapters, err := base.EnumerateAdapters()
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", adapters[0].MACAddress)
	assert.Equal(t, models.StatusConnected, adapters[0].Status)
	assert.Equal(t, models.AdapterLoopback, adapters[1].Type)
}

func TestBaseWritesRefuse(t *testing.T) {
	base := NewBaseWithPrimitives("plan9", newFakePrimitives())
	assert.ErrorIs(t, base.WriteMAC("eth0", "AA:BB:CC:DD:EE:FF"), ErrUnsupported)
	assert.ErrorIs(t, base.WriteMachineGUID("x"), ErrUnsupported)
	assert.ErrorIs(t, base.WriteVolumeSerial("/", "ABCD1234"), ErrUnsupported)
	assert.Empty(t, base.SupportedOperations())
}

func TestRunCommandReportsToLogger(t *testing.T) {
	prims := newFakePrimitives()
	prims.outputs["echo hello"] = "hello"
	base := NewBaseWithPrimitives("linux", prims)

	var loggedCmd string
	var loggedExit int
	base.SetLogger(func(id, cmd string, args []string, start, end time.Time, exitCode int, err error, target string) {
		loggedCmd = cmd
		loggedExit = exitCode
	})

	output, err := base.runCommand("test", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(output))
	assert.Equal(t, "echo", loggedCmd)
	assert.Zero(t, loggedExit)
}

func TestNewEngineForOS(t *testing.T) {
	base := NewBaseWithPrimitives("windows", newFakePrimitives())
	_, ok := newEngineForOS("windows", base).(*Windows)
	assert.True(t, ok)
	_, ok = newEngineForOS("darwin", base).(*Darwin)
	assert.True(t, ok)
	_, ok = newEngineForOS("linux", base).(*Linux)
	assert.True(t, ok)
	assert.NotNil(t, newEngineForOS("plan9", base))
}
