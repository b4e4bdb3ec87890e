// Package engine provides operating system specific fingerprint access
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ilexum-group/janus/internal/identifier"
	"github.com/ilexum-group/janus/pkg/models"
)

const (
	linuxSysClassNet  = "/sys/class/net"
	linuxMachineIDEtc = "/etc/machine-id"
)

// Linux implements Engine for Linux systems
type Linux struct {
	*Base
}

// NewLinux creates a new Linux engine backed by the live OS.
func NewLinux() Engine {
	return NewLinuxWithBase(NewBase())
}

// NewLinuxWithBase creates a new Linux engine with a provided Base.
func NewLinuxWithBase(base *Base) Engine {
	return &Linux{Base: base}
}

// SupportedOperations reports the mutations Linux can perform.
func (l *Linux) SupportedOperations() []models.OperationType {
	return []models.OperationType{models.OpModifyMAC, models.OpModifyGUID}
}

// EnumerateAdapters walks sysfs. An interface with a malformed address file
// is dropped with a logged reason; missing metadata files degrade to unknown
// values, never failing the batch.
func (l *Linux) EnumerateAdapters() ([]models.AdapterDescriptor, error) {
	entries, err := l.OSReadDir(linuxSysClassNet)
	if err != nil {
		// sysfs unavailable (containers, hardened mounts); degrade.
		return l.Base.EnumerateAdapters()
	}

	ipsByName := l.interfaceAddresses()

	adapters := make([]models.AdapterDescriptor, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		ifaceDir := filepath.Join(linuxSysClassNet, name)

		desc := models.AdapterDescriptor{
			ID:          name,
			Name:        name,
			Description: name,
			IPAddresses: ipsByName[name],
			Status:      models.StatusUnknown,
			Type:        l.linuxAdapterType(name, ifaceDir),
			Properties:  map[string]string{},
		}
		desc.IsPhysical = desc.Type != models.AdapterVirtual && desc.Type != models.AdapterLoopback

		if data, err := l.OSReadFile(filepath.Join(ifaceDir, "address")); err == nil {
			raw := strings.TrimSpace(string(data))
			if raw != "" && raw != "00:00:00:00:00:00" {
				mac, err := identifier.NormalizeMAC(raw)
				if err != nil {
					if l.logFunc != nil {
						l.logFunc("", "enumerate_adapters", nil, nowUTC(), nowUTC(), 0,
							fmt.Errorf("dropping interface %q: %w", name, err), name)
					}
					continue
				}
				desc.MACAddress = mac
			}
		}

		if data, err := l.OSReadFile(filepath.Join(ifaceDir, "operstate")); err == nil {
			switch strings.TrimSpace(string(data)) {
			case "up":
				desc.Status = models.StatusConnected
			case "down":
				desc.Status = models.StatusDisconnected
			}
		}

		adapters = append(adapters, desc)
	}

	return adapters, nil
}

// linuxAdapterType classifies an interface from its sysfs layout, falling
// back to the name heuristics.
func (l *Linux) linuxAdapterType(name, ifaceDir string) models.AdapterType {
	if name == "lo" {
		return models.AdapterLoopback
	}
	if _, err := l.OSStat(filepath.Join(ifaceDir, "wireless")); err == nil {
		return models.AdapterWifi
	}
	if _, err := l.OSStat(filepath.Join(ifaceDir, "device")); err != nil {
		// No backing device: bridge, veth, tunnel.
		return models.AdapterVirtual
	}
	return classifyInterface(name)
}

// interfaceAddresses maps interface names to their assigned IP addresses.
func (l *Linux) interfaceAddresses() map[string][]string {
	byName := make(map[string][]string)
	ifaces, err := l.NetInterfaces()
	if err != nil {
		return byName
	}
	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			byName[iface.Name] = append(byName[iface.Name], addr.String())
		}
	}
	return byName
}

// WriteMAC takes the link down, rewrites its address, and brings it back up.
func (l *Linux) WriteMAC(adapterID, mac string) error {
	steps := [][]string{
		{"ip", "link", "set", "dev", adapterID, "down"},
		{"ip", "link", "set", "dev", adapterID, "address", strings.ToLower(mac)},
		{"ip", "link", "set", "dev", adapterID, "up"},
	}
	for _, step := range steps {
		output, err := l.runCommand(adapterID, step[0], step[1:]...)
		if err != nil {
			return classifyWriteError(err, output)
		}
	}
	return nil
}

// ReadMachineGUID reads /etc/machine-id (32 lowercase hex digits).
func (l *Linux) ReadMachineGUID() (string, error) {
	data, err := l.OSReadFile(linuxMachineIDEtc)
	if err != nil {
		return "", fmt.Errorf("machine id unavailable: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("%w: machine-id", ErrNotFound)
	}
	return id, nil
}

// WriteMachineGUID rewrites /etc/machine-id in its native format: 32
// lowercase hex digits, no hyphens, trailing newline.
func (l *Linux) WriteMachineGUID(guid string) error {
	id := strings.ToLower(strings.ReplaceAll(guid, "-", ""))
	if err := l.OSWriteFile(linuxMachineIDEtc, []byte(id+"\n"), 0o444); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

var blkidLineRe = regexp.MustCompile(`^(\S+): UUID="([^"]+)"`)

// ReadVolumeSerials maps block devices to their filesystem UUIDs/serials.
// FAT-style 8-hex serials come back canonical; longer UUIDs pass through.
func (l *Linux) ReadVolumeSerials() (map[string]string, error) {
	serials := make(map[string]string)
	output, err := l.runCommand("volume_serials", "blkid", "-s", "UUID")
	if err != nil {
		return serials, fmt.Errorf("blkid failed: %s", strings.TrimSpace(string(output)))
	}
	for _, line := range strings.Split(string(output), "\n") {
		m := blkidLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		device, value := m[1], m[2]
		if serial, err := identifier.NormalizeVolumeSerial(value); err == nil {
			serials[device] = serial
		} else {
			serials[device] = value
		}
	}
	return serials, nil
}
