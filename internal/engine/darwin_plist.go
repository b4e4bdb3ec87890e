// Package engine provides operating system specific fingerprint access
package engine

import (
	"fmt"
	"strings"

	"howett.net/plist"
)

type hardwareProfileItem struct {
	PlatformUUID string `plist:"platform_UUID"`
	SerialNumber string `plist:"serial_number"`
	MachineModel string `plist:"machine_model"`
}

type hardwareProfileSection struct {
	DataType string                `plist:"_dataType"`
	Items    []hardwareProfileItem `plist:"_items"`
}

// readPlatformUUIDFromProfiler extracts the platform UUID from the
// system_profiler hardware report.
func (d *Darwin) readPlatformUUIDFromProfiler() (string, error) {
	output, err := d.runCommand("machine_guid", "system_profiler", "SPHardwareDataType", "-xml")
	if err != nil {
		return "", fmt.Errorf("platform uuid unavailable: %s", strings.TrimSpace(string(output)))
	}

	var sections []hardwareProfileSection
	if _, err := plist.Unmarshal(output, &sections); err != nil {
		return "", fmt.Errorf("platform uuid unavailable: %w", err)
	}

	for _, section := range sections {
		for _, item := range section.Items {
			if item.PlatformUUID != "" {
				return item.PlatformUUID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: IOPlatformUUID", ErrNotFound)
}

type diskutilInfoPlist struct {
	VolumeUUID string `plist:"VolumeUUID"`
	VolumeName string `plist:"VolumeName"`
	MountPoint string `plist:"MountPoint"`
}

// readVolumeUUID asks diskutil for the UUID of one mounted volume.
func (d *Darwin) readVolumeUUID(mountPoint string) (string, error) {
	output, err := d.runCommand(mountPoint, "diskutil", "info", "-plist", mountPoint)
	if err != nil {
		return "", fmt.Errorf("volume info failed: %s", strings.TrimSpace(string(output)))
	}

	var info diskutilInfoPlist
	if _, err := plist.Unmarshal(output, &info); err != nil {
		return "", fmt.Errorf("volume info returned malformed plist: %w", err)
	}
	if info.VolumeUUID == "" {
		return "", fmt.Errorf("%w: volume %q", ErrNotFound, mountPoint)
	}
	return info.VolumeUUID, nil
}
