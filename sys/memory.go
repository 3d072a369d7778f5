package sys

import (
	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryUsedPercent returns the percentage of host memory in use.
// Returns 0 if the platform query fails so callers treat it as "no pressure".
func MemoryUsedPercent() float64 {
	if vmStat, err := mem.VirtualMemory(); err == nil {
		return vmStat.UsedPercent
	}
	return 0
}

// MemoryTotal returns the total system memory in bytes, or 0 when unknown.
func MemoryTotal() uint64 {
	if vmStat, err := mem.VirtualMemory(); err == nil {
		return vmStat.Total
	}
	return 0
}
