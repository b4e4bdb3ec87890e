// Package engine provides operating system specific fingerprint access
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/osv-scalibr/common/windows/registry"
)

// offlineRegistry reads a hive file directly, without the live registry API.
// Used as a fallback when `reg query` is unavailable (restricted shells,
// recovery environments).
type offlineRegistry struct {
	hive    registry.Registry
	cleanup func()
}

func (w *Windows) openOfflineRegistry(hivePath string) (*offlineRegistry, error) {
	// Copy through the primitives so the hive read is observable in tests.
	data, err := w.OSReadFile(hivePath)
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp("", "janus_hive_*.dat")
	if err != nil {
		return nil, err
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return nil, err
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return nil, err
	}

	opener := registry.NewOfflineOpener(tmpFile.Name())
	hive, err := opener.Open()
	if err != nil {
		_ = os.Remove(tmpFile.Name())
		return nil, err
	}

	return &offlineRegistry{
		hive: hive,
		cleanup: func() {
			_ = os.Remove(tmpFile.Name())
		},
	}, nil
}

func (r *offlineRegistry) close() {
	if r == nil {
		return
	}
	_ = r.hive.Close()
	if r.cleanup != nil {
		r.cleanup()
	}
}

func (w *Windows) windowsHivePath(name string) string {
	base := w.OSGetenv("SystemRoot")
	if base == "" {
		base = `C:\Windows`
	}
	return filepath.Join(base, "System32", "config", name)
}

// readMachineGUIDFromHive parses MachineGuid out of the SOFTWARE hive file.
func (w *Windows) readMachineGUIDFromHive() (string, error) {
	reg, err := w.openOfflineRegistry(w.windowsHivePath("SOFTWARE"))
	if err != nil {
		return "", fmt.Errorf("machine guid unavailable: %w", err)
	}
	defer reg.close()

	key, err := reg.hive.OpenKey("", `Microsoft\Cryptography`)
	if err != nil {
		return "", fmt.Errorf("machine guid unavailable: %w", err)
	}

	value, err := key.ValueString("MachineGuid")
	if err != nil {
		return "", fmt.Errorf("machine guid unavailable: %w", err)
	}

	guid := strings.TrimRight(value, "\x00")
	if guid == "" {
		return "", fmt.Errorf("%w: MachineGuid", ErrNotFound)
	}
	return guid, nil
}
