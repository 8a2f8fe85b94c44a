// Package profiling writes pprof CPU and heap profiles for a daemon run.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Profiler holds the profile destinations chosen on the command line.
type Profiler struct {
	CPUPath string
	MemPath string

	cpuFile *os.File
}

// AddFlags registers --cpu-profile and --mem-profile on cmd.
func (p *Profiler) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.CPUPath, "cpu-profile", "", "Write a CPU profile of the daemon run to this file")
	cmd.Flags().StringVar(&p.MemPath, "mem-profile", "", "Write a heap profile to this file when the daemon stops")
}

// Enabled reports whether any profile was requested.
func (p *Profiler) Enabled() bool {
	return p.CPUPath != "" || p.MemPath != ""
}

// Start begins CPU profiling if requested.
func (p *Profiler) Start() error {
	if p.CPUPath == "" {
		return nil
	}
	f, err := os.Create(p.CPUPath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// Stop ends CPU profiling and writes the heap profile. Failures are logged;
// a missing profile never fails shutdown.
func (p *Profiler) Stop(logger logrus.FieldLogger) {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
		logger.WithField("path", p.CPUPath).Info("CPU profile written")
	}

	if p.MemPath == "" {
		return
	}
	f, err := os.Create(p.MemPath)
	if err != nil {
		logger.WithError(err).Warn("Could not create heap profile")
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.WithError(err).Warn("Could not write heap profile")
		return
	}
	logger.WithField("path", p.MemPath).Info("Heap profile written")
}
