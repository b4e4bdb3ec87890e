// Package engine provides operating system specific fingerprint access
package engine

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilexum-group/janus/internal/identifier"
	"github.com/ilexum-group/janus/pkg/models"
)

// Engine reads and writes machine-identifying attributes. Write calls mutate
// real OS state and usually need elevated privilege; they do not take backups
// or ask for confirmation, that is the orchestrator's job.
type Engine interface {
	// Embed SystemPrimitives for low-level OS operations
	SystemPrimitives

	// Engine identity
	SetLogger(models.CommandLogger)
	OSName() string

	// Read side
	EnumerateAdapters() ([]models.AdapterDescriptor, error)
	ReadSystemInfo() (models.SystemDescriptor, error)
	ReadMAC(adapterID string) (string, error)
	ReadMachineGUID() (string, error)
	ReadVolumeSerials() (map[string]string, error)

	// Write side
	WriteMAC(adapterID, mac string) error
	WriteMachineGUID(guid string) error
	WriteVolumeSerial(volume, serial string) error

	// SupportedOperations returns the mutations this platform/build can
	// actually perform.
	SupportedOperations() []models.OperationType
}

// Engine error sentinels. PermissionDenied is distinct from a plain write
// failure so the orchestrator can give actionable guidance.
var (
	ErrPermissionDenied = errors.New("permission denied by operating system")
	ErrUnsupported      = errors.New("operation not supported on this platform")
	ErrNotFound         = errors.New("target identifier not found")
)

// DetectOS returns the current operating system
func DetectOS() string {
	return runtime.GOOS
}

// Base provides shared behavior for the platform engines. Its write methods
// refuse; each platform overrides the ones it can actually perform.
type Base struct {
	SystemPrimitives
	logFunc models.CommandLogger
	osName  string
}

// NewBase creates a Base backed by the live OS.
func NewBase() *Base {
	return &Base{
		SystemPrimitives: hostPrimitives{},
		osName:           runtime.GOOS,
	}
}

// NewBaseWithPrimitives creates a Base backed by the provided primitives.
func NewBaseWithPrimitives(osName string, prims SystemPrimitives) *Base {
	return &Base{
		SystemPrimitives: prims,
		osName:           osName,
	}
}

// SetLogger configures the command logging function for engine operations
func (b *Base) SetLogger(logFunc models.CommandLogger) {
	b.logFunc = logFunc
}

// OSName returns the OS this engine targets.
func (b *Base) OSName() string {
	return b.osName
}

// runCommand executes an OS command, reporting it to the command logger with
// timing and exit code.
func (b *Base) runCommand(target string, name string, args ...string) ([]byte, error) {
	cmd := b.ExecCommand(name, args...)
	start := time.Now().UTC()
	output, err := cmd.CombinedOutput()
	end := time.Now().UTC()

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	if b.logFunc != nil {
		b.logFunc(uuid.NewString(), name, args, start, end, exitCode, err, target)
	}

	return output, err
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// classifyWriteError maps a failed mutation command onto the engine error
// taxonomy, preserving the command's own message verbatim.
func classifyWriteError(err error, output []byte) error {
	text := strings.ToLower(string(output))
	denied := []string{"access is denied", "permission denied", "operation not permitted", "must be root", "requested operation requires elevation"}
	for _, marker := range denied {
		if strings.Contains(text, marker) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(string(output)))
		}
	}
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("write failed: %s", msg)
}

// EnumerateAdapters builds adapter descriptors from the portable interface
// list. Platform engines replace this with their native enumeration and fall
// back here when the native surface is unavailable.
func (b *Base) EnumerateAdapters() ([]models.AdapterDescriptor, error) {
	ifaces, err := b.NetInterfaces()
	if err != nil {
		return nil, fmt.Errorf("interface enumeration failed: %w", err)
	}

	adapters := make([]models.AdapterDescriptor, 0, len(ifaces))
	for _, iface := range ifaces {
		desc := models.AdapterDescriptor{
			ID:          iface.Name,
			Name:        iface.Name,
			Description: iface.Name,
			Status:      models.StatusUnknown,
			Type:        classifyInterface(iface.Name),
		}
		desc.IsPhysical = desc.Type != models.AdapterVirtual && desc.Type != models.AdapterLoopback

		if hw := iface.HardwareAddr.String(); hw != "" {
			mac, err := identifier.NormalizeMAC(hw)
			if err != nil {
				// A malformed row never fails the whole batch.
				continue
			}
			desc.MACAddress = mac
		}

		if iface.Flags&net.FlagUp != 0 {
			desc.Status = models.StatusConnected
		} else {
			desc.Status = models.StatusDisconnected
		}

		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			desc.IPAddresses = append(desc.IPAddresses, addr.String())
		}

		adapters = append(adapters, desc)
	}

	return adapters, nil
}

// classifyInterface guesses the adapter type from the interface name.
func classifyInterface(name string) models.AdapterType {
	lower := strings.ToLower(name)
	switch {
	case lower == "lo" || strings.HasPrefix(lower, "lo0"):
		return models.AdapterLoopback
	case strings.HasPrefix(lower, "wl") || strings.HasPrefix(lower, "wlan") || strings.HasPrefix(lower, "wifi"):
		return models.AdapterWifi
	case strings.HasPrefix(lower, "bt") || strings.Contains(lower, "bluetooth"):
		return models.AdapterBluetooth
	case strings.HasPrefix(lower, "veth") || strings.HasPrefix(lower, "docker") ||
		strings.HasPrefix(lower, "br-") || strings.HasPrefix(lower, "virbr") ||
		strings.HasPrefix(lower, "vmnet") || strings.HasPrefix(lower, "utun") ||
		strings.HasPrefix(lower, "tun") || strings.HasPrefix(lower, "tap"):
		return models.AdapterVirtual
	case strings.HasPrefix(lower, "en") || strings.HasPrefix(lower, "eth"):
		return models.AdapterEthernet
	default:
		return models.AdapterOther
	}
}

// ReadMAC returns the current canonical MAC of one adapter.
func (b *Base) ReadMAC(adapterID string) (string, error) {
	adapters, err := b.EnumerateAdapters()
	if err != nil {
		return "", err
	}
	for _, adapter := range adapters {
		if adapter.ID == adapterID {
			return adapter.MACAddress, nil
		}
	}
	return "", fmt.Errorf("%w: adapter %q", ErrNotFound, adapterID)
}

// ReadMachineGUID refuses; platform engines override it.
func (b *Base) ReadMachineGUID() (string, error) {
	return "", fmt.Errorf("%w: read machine guid", ErrUnsupported)
}

// ReadVolumeSerials returns no volumes; platform engines override it.
func (b *Base) ReadVolumeSerials() (map[string]string, error) {
	return map[string]string{}, nil
}

// WriteMAC refuses; platform engines override it.
func (b *Base) WriteMAC(_, _ string) error {
	return fmt.Errorf("%w: write mac", ErrUnsupported)
}

// WriteMachineGUID refuses; platform engines override it.
func (b *Base) WriteMachineGUID(_ string) error {
	return fmt.Errorf("%w: write machine guid", ErrUnsupported)
}

// WriteVolumeSerial refuses on every current platform. The underlying
// mutation rewrites the filesystem boot sector and cannot be verified safely,
// so no engine advertises it.
func (b *Base) WriteVolumeSerial(_, _ string) error {
	return fmt.Errorf("%w: write volume serial", ErrUnsupported)
}

// SupportedOperations reports no mutations for the portable base.
func (b *Base) SupportedOperations() []models.OperationType {
	return nil
}

// newEngineForOS selects the engine implementation for an OS name. The
// platform set is closed at build time; there is no dynamic registration.
func newEngineForOS(osName string, base *Base) Engine {
	switch osName {
	case "windows":
		return NewWindowsWithBase(base)
	case "darwin":
		return NewDarwinWithBase(base)
	case "linux":
		return NewLinuxWithBase(base)
	default:
		return base
	}
}

// New returns the engine for the runtime OS.
func New() Engine {
	return newEngineForOS(runtime.GOOS, NewBase())
}
