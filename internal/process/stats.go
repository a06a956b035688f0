package process

import (
	gops "github.com/shirou/gopsutil/v4/process"
)

// sampleUsage reads CPU percent and resident memory for pid. Failures are
// returned to the caller, which treats usage as optional status decoration.
func sampleUsage(pid int) (cpu float64, rss uint64, err error) {
	proc, err := gops.NewProcess(int32(pid))
	if err != nil {
		return 0, 0, err
	}
	cpu, err = proc.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return cpu, 0, err
	}
	return cpu, mem.RSS, nil
}
