// Package engine provides operating system specific fingerprint access
package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ilexum-group/janus/internal/identifier"
	"github.com/ilexum-group/janus/pkg/models"
)

// Darwin implements Engine for macOS systems
type Darwin struct {
	*Base
}

// NewDarwin creates a new Darwin engine backed by the live OS.
func NewDarwin() Engine {
	return NewDarwinWithBase(NewBase())
}

// NewDarwinWithBase creates a new Darwin engine with a provided Base.
func NewDarwinWithBase(base *Base) Engine {
	return &Darwin{Base: base}
}

// SupportedOperations reports the mutations macOS can perform. The platform
// UUID lives in NVRAM and the volume serial in the filesystem header; neither
// is writable from userspace.
func (d *Darwin) SupportedOperations() []models.OperationType {
	return []models.OperationType{models.OpModifyMAC}
}

var (
	ifconfigHeaderRe = regexp.MustCompile(`^([a-z][a-z0-9]*): flags=\d+<([^>]*)>`)
	ifconfigEtherRe  = regexp.MustCompile(`ether ([0-9a-fA-F:]{17})`)
	ifconfigInetRe   = regexp.MustCompile(`\binet6? (\S+)`)
	ifconfigStatusRe = regexp.MustCompile(`status: (\w+)`)
)

// EnumerateAdapters merges `ifconfig -a` interface blocks with the hardware
// port names from `networksetup -listallhardwareports`. An interface whose
// ether line fails normalization is dropped with a logged reason; a missing
// hardware port name degrades to the interface name.
func (d *Darwin) EnumerateAdapters() ([]models.AdapterDescriptor, error) {
	output, err := d.runCommand("network_adapters", "ifconfig", "-a")
	if err != nil {
		return nil, fmt.Errorf("ifconfig failed: %s", strings.TrimSpace(string(output)))
	}

	ports := d.hardwarePorts()

	var adapters []models.AdapterDescriptor
	var current *models.AdapterDescriptor

	flush := func() {
		if current != nil {
			adapters = append(adapters, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(string(output), "\n") {
		if m := ifconfigHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			name := m[1]
			desc := models.AdapterDescriptor{
				ID:          name,
				Name:        name,
				Description: name,
				Status:      models.StatusDisconnected,
				Type:        classifyInterface(name),
				Properties:  map[string]string{},
			}
			if port, ok := ports[name]; ok {
				desc.Name = port
				desc.Description = port
				desc.Type = darwinPortType(port)
			}
			desc.IsPhysical = desc.Type != models.AdapterVirtual && desc.Type != models.AdapterLoopback
			if strings.Contains(m[2], "UP") {
				desc.Status = models.StatusConnected
			}
			current = &desc
			continue
		}
		if current == nil {
			continue
		}
		if m := ifconfigEtherRe.FindStringSubmatch(line); m != nil {
			mac, err := identifier.NormalizeMAC(m[1])
			if err != nil {
				if d.logFunc != nil {
					d.logFunc("", "enumerate_adapters", nil, nowUTC(), nowUTC(), 0,
						fmt.Errorf("dropping interface %q: %w", current.ID, err), current.ID)
				}
				current = nil
				continue
			}
			current.MACAddress = mac
			continue
		}
		if m := ifconfigInetRe.FindStringSubmatch(line); m != nil {
			current.IPAddresses = append(current.IPAddresses, m[1])
			continue
		}
		if m := ifconfigStatusRe.FindStringSubmatch(line); m != nil {
			if m[1] == "active" {
				current.Status = models.StatusConnected
			} else {
				current.Status = models.StatusDisconnected
			}
		}
	}
	flush()

	return adapters, nil
}

// hardwarePorts maps device names (en0) to hardware port names (Wi-Fi).
func (d *Darwin) hardwarePorts() map[string]string {
	ports := make(map[string]string)
	output, err := d.runCommand("hardware_ports", "networksetup", "-listallhardwareports")
	if err != nil {
		return ports
	}

	var portName string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "Hardware Port: "); ok {
			portName = after
			continue
		}
		if after, ok := strings.CutPrefix(line, "Device: "); ok && portName != "" {
			ports[after] = portName
		}
	}
	return ports
}

func darwinPortType(portName string) models.AdapterType {
	lower := strings.ToLower(portName)
	switch {
	case strings.Contains(lower, "wi-fi") || strings.Contains(lower, "airport"):
		return models.AdapterWifi
	case strings.Contains(lower, "bluetooth"):
		return models.AdapterBluetooth
	case strings.Contains(lower, "ethernet") || strings.Contains(lower, "lan"):
		return models.AdapterEthernet
	case strings.Contains(lower, "bridge") || strings.Contains(lower, "vpn") || strings.Contains(lower, "thunderbolt"):
		return models.AdapterVirtual
	default:
		return models.AdapterOther
	}
}

// WriteMAC sets the interface's ether address. The change survives until the
// next reboot; macOS has no persistent override.
func (d *Darwin) WriteMAC(adapterID, mac string) error {
	output, err := d.runCommand(adapterID, "ifconfig", adapterID, "ether", strings.ToLower(mac))
	if err != nil {
		return classifyWriteError(err, output)
	}
	return nil
}

var ioregUUIDRe = regexp.MustCompile(`"IOPlatformUUID"\s*=\s*"([0-9a-fA-F-]+)"`)

// ReadMachineGUID reads the IOPlatformUUID, falling back to the
// system_profiler hardware plist when ioreg is unavailable.
func (d *Darwin) ReadMachineGUID() (string, error) {
	output, err := d.runCommand("machine_guid", "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
	if err == nil {
		if m := ioregUUIDRe.FindStringSubmatch(string(output)); m != nil {
			return m[1], nil
		}
	}
	return d.readPlatformUUIDFromProfiler()
}

// ReadVolumeSerials maps mount points to their volume UUIDs.
func (d *Darwin) ReadVolumeSerials() (map[string]string, error) {
	serials := make(map[string]string)
	uuid, err := d.readVolumeUUID("/")
	if err != nil {
		return serials, err
	}
	serials["/"] = uuid
	return serials, nil
}
