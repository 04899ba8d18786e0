// Package profilers sets up profiling of the training and evaluation runs.
//
// If linked, it installs the Go flags -prof (HTTP pprof port), -cpu_profile and -mem_profile.
package profilers

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagProfiler   = flag.Int("prof", -1, "If set, runs the HTTP pprof profiler at the given port.")
	flagCPUProfile = flag.String("cpu_profile", "", "write cpu profile to `file`")
	flagMemProfile = flag.String("mem_profile", "", "write heap profile to `file` at exit")
	profilerAddr   string
	cpuProfileFile *os.File

	// globalCtx is set on the call to Setup.
	globalCtx context.Context
)

// Setup starts the HTTP (flag -prof) and CPU profilers (flag -cpu_profile), if they were configured.
// It should be followed by a deferred call to OnQuit.
func Setup(ctx context.Context) error {
	globalCtx = ctx
	if *flagProfiler >= 0 {
		setupHTTPProfiler()
	}
	if *flagCPUProfile != "" {
		return startCPUProfile(*flagCPUProfile)
	}
	return nil
}

// OnQuit stops the profilers. It writes the heap profile, if -mem_profile was set, and if the HTTP
// profiler is running it keeps the program alive until the context given to Setup is done.
func OnQuit() {
	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		_ = cpuProfileFile.Close()
		cpuProfileFile = nil
	}
	if *flagMemProfile != "" {
		if err := writeHeapProfile(*flagMemProfile); err != nil {
			klog.Errorf("Heap profile: %+v", err)
		}
	}
	if *flagProfiler >= 0 {
		httpProfilerOnQuit()
	}
}

func startCPUProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create CPU profile %q", path)
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "could not start CPU profile")
	}
	cpuProfileFile = f
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create heap profile %q", path)
	}
	defer func() { _ = f.Close() }()
	runtime.GC()
	return errors.Wrap(pprof.WriteHeapProfile(f), "could not write heap profile")
}

// setupHTTPProfiler starts serving pprof on the port given by -prof.
func setupHTTPProfiler() {
	profilerAddr = fmt.Sprintf("localhost:%d", *flagProfiler)
	klog.Infof("Starting profiler on %s/debug/pprof (e.g.: go tool pprof %s/debug/pprof/heap)", profilerAddr, profilerAddr)
	go func() {
		klog.Fatal(http.ListenAndServe(profilerAddr, nil))
	}()
}

// httpProfilerOnQuit keeps the program alive until interrupted, so one can still read the profile.
func httpProfilerOnQuit() {
	if globalCtx == nil || globalCtx.Err() != nil {
		// Already interrupted.
		return
	}
	fmt.Printf("- Program finished: kept alive with profiler opened at %s/debug/pprof\n", profilerAddr)
	fmt.Printf("- Interrupt (Ctrl+C) to exit\n")
	<-globalCtx.Done()
	fmt.Printf("... exiting ...\n")
}
