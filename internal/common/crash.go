// -----------------------------------------------------------------------
// Crash Protection - Fatal error handling and crash file generation
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is where crash reports are written. Set during startup.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Called once at
// startup before any goroutine is spawned.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile writes a crash report for post-mortem analysis and returns
// its path. Called from panic recovery handlers; must not panic itself.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	timestamp := time.Now().Format("2006-01-02T15-04-05")
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", timestamp))

	var report bytes.Buffer
	fmt.Fprintf(&report, "=== MINUTA CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n\n", GetFullVersion())

	fmt.Fprintf(&report, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== STACK TRACE ===\n%s\n", stackTrace)
	fmt.Fprintf(&report, "=== ALL GOROUTINES ===\n%s\n", GetAllGoroutineStacks())

	fmt.Fprintf(&report, "=== RUNTIME ===\n")
	fmt.Fprintf(&report, "NumGoroutine: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&report, "SpawnedViaSafeGo: %d\n", GetGoroutineCount())
	fmt.Fprintf(&report, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(&report, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// Unbuffered write; buffered IO is not trustworthy mid-crash
	if err := os.WriteFile(crashPath, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to write crash file: %v\n", err)
		fmt.Fprintf(os.Stderr, "%s", report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)

	return crashPath
}

// GetAllGoroutineStacks returns stack traces for every goroutine, growing
// the buffer until the dump fits.
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 64*1024*1024 {
			return string(buf[:runtime.Stack(buf, true)])
		}
	}
}

// GetStackTrace returns the current goroutine's stack trace.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// RecoverWithCrashFile is a deferred recovery helper for main: it writes a
// crash file for an otherwise-unhandled panic and exits non-zero.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}
