package web

import (
	"path/filepath"
	"runtime"

	log "github.com/go-pkgz/lgr"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// hostStats is a snapshot of host resources shown in the settings modal.
// Unavailable values stay zero.
type hostStats struct {
	Goroutines    int
	MemUsedPct    float64
	Load1         float64
	Load5         float64
	DiskFreePct   float64
	DiskPath      string
	Available     bool
	GoVersion     string
	NumCPU        int
	MemTotalBytes uint64
}

// collectHostStats reads memory, load and disk usage of the volume holding dbPath
func collectHostStats(dbPath string) hostStats {
	res := hostStats{Goroutines: runtime.NumGoroutine(), GoVersion: runtime.Version(), NumCPU: runtime.NumCPU()}

	if v, err := mem.VirtualMemory(); err == nil {
		res.MemUsedPct = v.UsedPercent
		res.MemTotalBytes = v.Total
		res.Available = true
	} else {
		log.Printf("[DEBUG] failed to get memory stats: %v", err)
	}

	if l, err := load.Avg(); err == nil {
		res.Load1, res.Load5 = l.Load1, l.Load5
	} else {
		log.Printf("[DEBUG] failed to get load average: %v", err)
	}

	res.DiskPath = "."
	if dbPath != "" {
		res.DiskPath = filepath.Dir(dbPath)
	}
	if u, err := disk.Usage(res.DiskPath); err == nil {
		res.DiskFreePct = 100 - u.UsedPercent
	} else {
		log.Printf("[DEBUG] failed to get disk usage for %s: %v", res.DiskPath, err)
	}
	return res
}
