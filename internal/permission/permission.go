// Package permission checks whether the current process holds the privilege
// a mutation needs, before any system state is touched.
package permission

import (
	"fmt"

	"github.com/ilexum-group/janus/internal/engine"
	"github.com/ilexum-group/janus/pkg/models"
)

// Gate answers privilege questions for one engine. The check is advisory:
// the engine still classifies a denied write, but the gate lets the
// orchestrator refuse early with clear guidance instead of a half-run
// command error.
type Gate struct {
	prims  engine.SystemPrimitives
	osName string
}

// NewGate creates a Gate for the given engine.
func NewGate(eng engine.Engine) *Gate {
	return &Gate{prims: eng, osName: eng.OSName()}
}

// NewGateWithPrimitives creates a Gate directly over primitives, for tests.
func NewGateWithPrimitives(osName string, prims engine.SystemPrimitives) *Gate {
	return &Gate{prims: prims, osName: osName}
}

// HasPrivilege reports whether the process can perform mutations of the
// given type. Reads never need privilege.
func (g *Gate) HasPrivilege(opType models.OperationType) (bool, error) {
	switch opType {
	case models.OpModifyMAC, models.OpModifyGUID, models.OpModifyVolumeSerial:
		return g.isElevated()
	default:
		return true, nil
	}
}

// isElevated reports whether the process runs as root or as a Windows
// administrator.
func (g *Gate) isElevated() (bool, error) {
	if g.osName == "windows" {
		return g.isWindowsAdmin()
	}
	return g.prims.Geteuid() == 0, nil
}

// isWindowsAdmin probes admin membership with `net session`, which fails
// with "Access is denied" for standard users. Exit status alone decides;
// the output is not parsed.
func (g *Gate) isWindowsAdmin() (bool, error) {
	cmd := g.prims.ExecCommand("net", "session")
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}

// DescribePrivilegeGap returns remediation text for the current platform.
func (g *Gate) DescribePrivilegeGap() string {
	if g.osName == "windows" {
		return "run from an elevated prompt (right-click, Run as administrator)"
	}
	return "re-run with root privileges (sudo)"
}

// CurrentUser returns the username recorded on audit entries. Failure
// degrades to "unknown" rather than blocking the operation.
func (g *Gate) CurrentUser() string {
	u, err := g.prims.UserCurrent()
	if err != nil || u == nil {
		return "unknown"
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("uid:%s", u.Uid)
}
