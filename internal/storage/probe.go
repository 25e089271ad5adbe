// Package storage reports free disk space for download target paths.
package storage

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// ErrProbeFailed is returned when the filesystem query itself fails.
var ErrProbeFailed = errors.New("storage probe failed")

const bytesPerGB = 1024 * 1024 * 1024

// Probe queries filesystem capacity.
type Probe struct{}

// NewProbe creates a storage probe.
func NewProbe() *Probe {
	return &Probe{}
}

// AvailableBytes returns the free space on the filesystem containing path.
func (p *Probe) AvailableBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
	}
	return usage.Free, nil
}

// HasAtLeast reports whether the filesystem containing path has at least
// gb gigabytes free.
func (p *Probe) HasAtLeast(path string, gb int) (bool, error) {
	free, err := p.AvailableBytes(path)
	if err != nil {
		return false, err
	}
	return free >= uint64(gb)*bytesPerGB, nil
}

// AvailableGB returns free space in whole gigabytes, for log payloads.
func (p *Probe) AvailableGB(path string) (int, error) {
	free, err := p.AvailableBytes(path)
	if err != nil {
		return 0, err
	}
	return int(free / bytesPerGB), nil
}
