// Package engine provides operating system specific fingerprint access
package engine

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ilexum-group/janus/pkg/models"
)

// ReadSystemInfo takes a fresh host snapshot. Partial failures degrade to
// zero values for the affected section instead of failing the whole snapshot.
func (b *Base) ReadSystemInfo() (models.SystemDescriptor, error) {
	desc := models.SystemDescriptor{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if info, err := host.Info(); err == nil {
		desc.Hostname = info.Hostname
		desc.OSVersion = info.PlatformVersion
		if info.OS != "" {
			desc.OS = info.OS
		}
		desc.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
		desc.Uptime = int64(time.Since(desc.BootTime).Seconds())
	}

	if current, err := b.UserCurrent(); err == nil {
		desc.CurrentUser = current.Username
	}

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		desc.CPU.Model = cpus[0].ModelName
		for _, c := range cpus {
			desc.CPU.Cores += int(c.Cores)
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		desc.Memory.Total = vm.Total
		desc.Memory.Used = vm.Used
	}

	if partitions, err := disk.Partitions(false); err == nil {
		for _, part := range partitions {
			usage, err := disk.Usage(part.Mountpoint)
			if err != nil {
				continue
			}
			desc.Disks = append(desc.Disks, models.DiskSummary{
				Path:       part.Mountpoint,
				Total:      usage.Total,
				Used:       usage.Used,
				FileSystem: part.Fstype,
			})
		}
	}

	return desc, nil
}
