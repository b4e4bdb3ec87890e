// Package engine provides operating system specific fingerprint access
package engine

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ilexum-group/janus/internal/identifier"
	"github.com/ilexum-group/janus/pkg/models"
)

// Registry locations the Windows engine operates on.
const (
	windowsNetworkClassKey = `HKLM\SYSTEM\CurrentControlSet\Control\Class\{4D36E972-E325-11CE-BFC1-08002BE10318}`
	windowsCryptographyKey = `HKLM\SOFTWARE\Microsoft\Cryptography`
)

// Windows implements Engine for Windows systems
type Windows struct {
	*Base
}

// NewWindows creates a new Windows engine backed by the live OS.
func NewWindows() Engine {
	return NewWindowsWithBase(NewBase())
}

// NewWindowsWithBase creates a new Windows engine with a provided Base.
func NewWindowsWithBase(base *Base) Engine {
	return &Windows{Base: base}
}

// SupportedOperations reports the mutations Windows can perform. Volume
// serial modification is deliberately absent: it rewrites the boot sector.
func (w *Windows) SupportedOperations() []models.OperationType {
	return []models.OperationType{models.OpModifyMAC, models.OpModifyGUID}
}

// EnumerateAdapters queries Win32_NetworkAdapter through PowerShell and
// parses the CSV projection. A row missing the connection name degrades to
// the driver description; a row with a malformed MAC is dropped with a logged
// reason, never failing the batch.
func (w *Windows) EnumerateAdapters() ([]models.AdapterDescriptor, error) {
	output, err := w.runCommand("network_adapters", "powershell", "-NoProfile", "-Command",
		"Get-CimInstance Win32_NetworkAdapter | Select-Object DeviceID,NetConnectionID,Description,MACAddress,NetEnabled,PhysicalAdapter | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		// CIM surface unavailable; degrade to the portable enumeration.
		return w.Base.EnumerateAdapters()
	}

	rows, err := parseCSVRows(output)
	if err != nil {
		return nil, fmt.Errorf("adapter query returned malformed CSV: %w", err)
	}

	ipsByMAC := w.interfaceAddresses()

	adapters := make([]models.AdapterDescriptor, 0, len(rows))
	for _, row := range rows {
		rawMAC := row["MACAddress"]
		if rawMAC == "" {
			continue
		}
		mac, err := identifier.NormalizeMAC(rawMAC)
		if err != nil {
			if w.logFunc != nil {
				w.logFunc("", "enumerate_adapters", nil, nowUTC(), nowUTC(), 0,
					fmt.Errorf("dropping adapter %q: %w", row["DeviceID"], err), row["DeviceID"])
			}
			continue
		}

		name := row["NetConnectionID"]
		if name == "" {
			name = row["Description"]
		}

		desc := models.AdapterDescriptor{
			ID:          row["DeviceID"],
			Name:        name,
			Description: row["Description"],
			MACAddress:  mac,
			IPAddresses: ipsByMAC[mac],
			Status:      windowsAdapterStatus(row["NetEnabled"]),
			Type:        windowsAdapterType(row["Description"]),
			IsPhysical:  strings.EqualFold(row["PhysicalAdapter"], "true"),
			Properties:  map[string]string{},
		}
		if index, err := strconv.Atoi(row["DeviceID"]); err == nil {
			desc.Properties["registry_path"] = fmt.Sprintf(`%s\%04d`, windowsNetworkClassKey, index)
		}

		adapters = append(adapters, desc)
	}

	return adapters, nil
}

func windowsAdapterStatus(netEnabled string) models.AdapterStatus {
	switch strings.ToLower(netEnabled) {
	case "true":
		return models.StatusConnected
	case "false":
		return models.StatusDisabled
	default:
		return models.StatusUnknown
	}
}

func windowsAdapterType(description string) models.AdapterType {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "loopback"):
		return models.AdapterLoopback
	case strings.Contains(lower, "wireless") || strings.Contains(lower, "wi-fi") || strings.Contains(lower, "802.11"):
		return models.AdapterWifi
	case strings.Contains(lower, "bluetooth"):
		return models.AdapterBluetooth
	case strings.Contains(lower, "virtual") || strings.Contains(lower, "vmware") ||
		strings.Contains(lower, "hyper-v") || strings.Contains(lower, "tap"):
		return models.AdapterVirtual
	default:
		return models.AdapterEthernet
	}
}

// interfaceAddresses maps canonical MAC to the IP addresses the portable
// stack reports for it.
func (w *Windows) interfaceAddresses() map[string][]string {
	byMAC := make(map[string][]string)
	ifaces, err := w.NetInterfaces()
	if err != nil {
		return byMAC
	}
	for _, iface := range ifaces {
		mac, err := identifier.NormalizeMAC(iface.HardwareAddr.String())
		if err != nil {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			byMAC[mac] = append(byMAC[mac], addr.String())
		}
	}
	return byMAC
}

// WriteMAC sets the NetworkAddress override under the adapter's class key and
// restarts the adapter so the driver picks it up. Writing the adapter's
// permanent address removes the override instead, restoring factory state.
func (w *Windows) WriteMAC(adapterID, mac string) error {
	adapter, err := w.findAdapter(adapterID)
	if err != nil {
		return err
	}
	keyPath := adapter.Properties["registry_path"]
	if keyPath == "" {
		return fmt.Errorf("%w: adapter %q has no registry path", ErrNotFound, adapterID)
	}

	value := strings.ReplaceAll(mac, ":", "")

	permanent, _ := w.readRegistryValue(keyPath, "PermanentAddress")
	if permanent != "" && identifier.EqualFold(permanent, mac) {
		output, err := w.runCommand(adapterID, "reg", "delete", keyPath, "/v", "NetworkAddress", "/f")
		if err != nil && !strings.Contains(strings.ToLower(string(output)), "unable to find") {
			return classifyWriteError(err, output)
		}
	} else {
		output, err := w.runCommand(adapterID, "reg", "add", keyPath, "/v", "NetworkAddress", "/t", "REG_SZ", "/d", value, "/f")
		if err != nil {
			return classifyWriteError(err, output)
		}
	}

	// The driver reads NetworkAddress at initialization; bounce the adapter.
	restart := fmt.Sprintf("Disable-NetAdapter -Name '%s' -Confirm:$false; Enable-NetAdapter -Name '%s' -Confirm:$false", adapter.Name, adapter.Name)
	if output, err := w.runCommand(adapterID, "powershell", "-NoProfile", "-Command", restart); err != nil {
		return classifyWriteError(err, output)
	}

	return nil
}

// ReadMachineGUID reads MachineGuid from the Cryptography key, falling back
// to an offline parse of the SOFTWARE hive when the live query fails.
func (w *Windows) ReadMachineGUID() (string, error) {
	output, err := w.runCommand("machine_guid", "reg", "query", windowsCryptographyKey, "/v", "MachineGuid")
	if err == nil {
		if guid := parseRegQueryValue(output, "MachineGuid"); guid != "" {
			return guid, nil
		}
	}
	return w.readMachineGUIDFromHive()
}

// WriteMachineGUID replaces MachineGuid under the Cryptography key.
func (w *Windows) WriteMachineGUID(guid string) error {
	output, err := w.runCommand("machine_guid", "reg", "add", windowsCryptographyKey, "/v", "MachineGuid", "/t", "REG_SZ", "/d", guid, "/f")
	if err != nil {
		return classifyWriteError(err, output)
	}
	return nil
}

// ReadVolumeSerials maps drive letters to their volume serial numbers.
func (w *Windows) ReadVolumeSerials() (map[string]string, error) {
	serials := make(map[string]string)
	output, err := w.runCommand("volume_serials", "powershell", "-NoProfile", "-Command",
		"Get-CimInstance Win32_LogicalDisk | Select-Object DeviceID,VolumeSerialNumber | ConvertTo-Csv -NoTypeInformation")
	if err != nil {
		return serials, fmt.Errorf("volume query failed: %s", strings.TrimSpace(string(output)))
	}
	rows, err := parseCSVRows(output)
	if err != nil {
		return serials, fmt.Errorf("volume query returned malformed CSV: %w", err)
	}
	for _, row := range rows {
		drive := row["DeviceID"]
		if drive == "" || row["VolumeSerialNumber"] == "" {
			continue
		}
		serial, err := identifier.NormalizeVolumeSerial(row["VolumeSerialNumber"])
		if err != nil {
			continue
		}
		serials[drive] = serial
	}
	return serials, nil
}

// ReadMAC resolves the adapter through the native CIM enumeration. The
// portable fallback keys adapters by interface name, which never matches the
// numeric DeviceIDs this engine hands out.
func (w *Windows) ReadMAC(adapterID string) (string, error) {
	adapter, err := w.findAdapter(adapterID)
	if err != nil {
		return "", err
	}
	return adapter.MACAddress, nil
}

// findAdapter returns the current descriptor for an adapter id.
func (w *Windows) findAdapter(adapterID string) (models.AdapterDescriptor, error) {
	adapters, err := w.EnumerateAdapters()
	if err != nil {
		return models.AdapterDescriptor{}, err
	}
	for _, adapter := range adapters {
		if adapter.ID == adapterID {
			return adapter, nil
		}
	}
	return models.AdapterDescriptor{}, fmt.Errorf("%w: adapter %q", ErrNotFound, adapterID)
}

// readRegistryValue runs `reg query` for a single value.
func (w *Windows) readRegistryValue(keyPath, valueName string) (string, error) {
	output, err := w.runCommand(keyPath, "reg", "query", keyPath, "/v", valueName)
	if err != nil {
		return "", fmt.Errorf("registry query failed: %s", strings.TrimSpace(string(output)))
	}
	value := parseRegQueryValue(output, valueName)
	if value == "" {
		return "", fmt.Errorf("%w: %s\\%s", ErrNotFound, keyPath, valueName)
	}
	return value, nil
}

// parseRegQueryValue extracts a value from `reg query` output lines shaped
// like "    MachineGuid    REG_SZ    xxxxxxxx-...".
func parseRegQueryValue(output []byte, valueName string) string {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && strings.EqualFold(fields[0], valueName) {
			return fields[len(fields)-1]
		}
	}
	return ""
}

// parseCSVRows reads a header-prefixed CSV document into one map per row.
// Short rows are tolerated; missing cells read as empty strings.
func parseCSVRows(output []byte) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimSpace(output)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[strings.TrimSpace(column)] = strings.TrimSpace(record[i])
			} else {
				row[strings.TrimSpace(column)] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
