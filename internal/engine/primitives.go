// Package engine provides operating system specific fingerprint access
package engine

import (
	"io/fs"
	"net"
	"os"
	"os/exec"
	"os/user"
)

// SystemPrimitives defines the low-level OS operations the engines run on.
// Engines never touch the OS directly; tests substitute a fake.
type SystemPrimitives interface {
	// File operations
	OSReadFile(path string) ([]byte, error)
	OSWriteFile(path string, data []byte, perm fs.FileMode) error
	OSStat(path string) (fs.FileInfo, error)
	OSReadDir(path string) ([]fs.DirEntry, error)
	OSGetenv(key string) string

	// User operations
	UserCurrent() (*user.User, error)
	Geteuid() int

	// Command execution
	ExecCommand(name string, args ...string) *exec.Cmd

	// Network operations
	NetInterfaces() ([]net.Interface, error)
}

// hostPrimitives is the live implementation backed by the real OS.
type hostPrimitives struct{}

// OSReadFile wraps os.ReadFile
//
//nolint:gosec // G304: Paths are controlled by fingerprint engine logic
func (hostPrimitives) OSReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// OSWriteFile wraps os.WriteFile
//
//nolint:gosec // G304: Paths are controlled by fingerprint engine logic
func (hostPrimitives) OSWriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// OSStat wraps os.Stat
func (hostPrimitives) OSStat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// OSReadDir wraps os.ReadDir
func (hostPrimitives) OSReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// OSGetenv wraps os.Getenv
func (hostPrimitives) OSGetenv(key string) string {
	return os.Getenv(key)
}

// UserCurrent wraps user.Current
func (hostPrimitives) UserCurrent() (*user.User, error) {
	return user.Current()
}

// Geteuid wraps os.Geteuid
func (hostPrimitives) Geteuid() int {
	return os.Geteuid()
}

// ExecCommand wraps exec.Command
func (hostPrimitives) ExecCommand(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

// NetInterfaces wraps net.Interfaces
func (hostPrimitives) NetInterfaces() ([]net.Interface, error) {
	return net.Interfaces()
}
