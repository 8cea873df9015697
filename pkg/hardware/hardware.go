// Package hardware describes the host an experiment ran on, so that solver
// wall times in the ledger can be compared across machines.
package hardware

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of the host
type Info struct {
	Hostname      string  `json:"hostname"`
	CPUModel      string  `json:"cpu_model"`
	CPUThreads    int     `json:"cpu_threads"`
	RAMTotalBytes uint64  `json:"ram_total_bytes"`
	RAMUsedPct    float64 `json:"ram_used_percent"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
}

// Detect gathers host information. Missing pieces are reported as Unknown
// rather than failing the run.
func Detect() *Info {
	info := &Info{
		CPUModel:   "Unknown",
		CPUThreads: runtime.NumCPU(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}
	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		if model := strings.TrimSpace(cpus[0].ModelName); model != "" {
			info.CPUModel = model
		}
	}
	if threads, err := cpu.Counts(true); err == nil && threads > 0 {
		info.CPUThreads = threads
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.RAMTotalBytes = vm.Total
		info.RAMUsedPct = vm.UsedPercent
	}
	return info
}

// RAMGB returns the total memory in GiB
func (i *Info) RAMGB() float64 {
	return float64(i.RAMTotalBytes) / (1 << 30)
}

// String renders a short label, e.g. "node1 (Intel Xeon, 16 threads, 64.0 GB)"
func (i *Info) String() string {
	return fmt.Sprintf("%s (%s, %d threads, %.1f GB)", i.Hostname, i.CPUModel, i.CPUThreads, i.RAMGB())
}

// JSON encodes the snapshot for the run ledger
func (i *Info) JSON() string {
	data, err := json.Marshal(i)
	if err != nil {
		return i.String()
	}
	return string(data)
}
