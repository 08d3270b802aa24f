package monitor

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/cyclopcam/henhouse/pkg/kibi"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryReader returns the resident set size of the process, in bytes
type MemoryReader func() (uint64, error)

func ProcessRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

// reclaimMemory forces a GC, returns freed pages to the OS, and logs the resulting memory usage
// along with the average timings since the previous call.
func (m *Monitor) reclaimMemory(cycle int64) {
	runtime.GC()
	debug.FreeOSMemory()

	rss, err := m.Memory()
	if err != nil {
		m.Log.Warnf("Cycle %v: Unable to read memory usage: %v", cycle, err)
		return
	}
	m.Log.Infof("Cycle %v: Memory after GC: %v", cycle, kibi.FormatMegabytes(rss))
	m.Log.Infof("Cycle %v: Image load %v, detection %v", cycle, &m.loadTime, &m.detectTime)
	m.loadTime.Reset()
	m.detectTime.Reset()

	if m.config.MemoryWarnBytes > 0 && int64(rss) > m.config.MemoryWarnBytes {
		m.Log.Warnf("Memory usage %v exceeds warning threshold of %v", kibi.FormatBytes(int64(rss)), kibi.FormatBytes(m.config.MemoryWarnBytes))
	}
}

func (m *Monitor) memoryString() string {
	rss, err := m.Memory()
	if err != nil {
		return "unknown"
	}
	return kibi.FormatMegabytes(rss)
}
