package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ReserveMode selects how much host capacity is held back from the node
// agent's advertised allocation.
type ReserveMode string

const (
	ReservePercent ReserveMode = "percent"
	ReserveFixed   ReserveMode = "fixed"
)

// ReservePolicy computes the memory and disk capacity advertised for the
// node record. The source installers disagreed between a percentage hold
// and a fixed hold, so both are supported and selected per run.
type ReservePolicy struct {
	Mode      ReserveMode
	Percent   int
	MemoryMiB int64
	DiskMiB   int64
}

// DefaultReservePolicy holds back 20% of host memory and disk.
func DefaultReservePolicy() ReservePolicy {
	return ReservePolicy{Mode: ReservePercent, Percent: 20}
}

// ParseReservePolicy parses "percent:N" or "fixed:MEM_MIB,DISK_MIB".
func ParseReservePolicy(s string) (ReservePolicy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultReservePolicy(), nil
	}

	mode, rest, found := strings.Cut(s, ":")
	if !found {
		return ReservePolicy{}, fmt.Errorf("invalid reserve policy %q: want percent:N or fixed:MEM,DISK", s)
	}

	switch ReserveMode(mode) {
	case ReservePercent:
		pct, err := strconv.Atoi(rest)
		if err != nil || pct < 0 || pct >= 100 {
			return ReservePolicy{}, fmt.Errorf("invalid reserve percentage %q", rest)
		}
		return ReservePolicy{Mode: ReservePercent, Percent: pct}, nil
	case ReserveFixed:
		memStr, diskStr, found := strings.Cut(rest, ",")
		if !found {
			return ReservePolicy{}, fmt.Errorf("invalid fixed reserve %q: want MEM_MIB,DISK_MIB", rest)
		}
		mem, err := strconv.ParseInt(memStr, 10, 64)
		if err != nil || mem < 0 {
			return ReservePolicy{}, fmt.Errorf("invalid reserved memory %q", memStr)
		}
		disk, err := strconv.ParseInt(diskStr, 10, 64)
		if err != nil || disk < 0 {
			return ReservePolicy{}, fmt.Errorf("invalid reserved disk %q", diskStr)
		}
		return ReservePolicy{Mode: ReserveFixed, MemoryMiB: mem, DiskMiB: disk}, nil
	}
	return ReservePolicy{}, fmt.Errorf("invalid reserve mode %q", mode)
}

// SafeMemoryMiB returns the memory allocation after applying the hold.
func (p ReservePolicy) SafeMemoryMiB(totalMiB int64) int64 {
	return p.apply(totalMiB, p.MemoryMiB)
}

// SafeDiskMiB returns the disk allocation after applying the hold.
func (p ReservePolicy) SafeDiskMiB(totalMiB int64) int64 {
	return p.apply(totalMiB, p.DiskMiB)
}

func (p ReservePolicy) apply(total, fixed int64) int64 {
	var out int64
	switch p.Mode {
	case ReserveFixed:
		out = total - fixed
	default:
		out = total * int64(100-p.Percent) / 100
	}
	if out < 0 {
		return 0
	}
	return out
}
