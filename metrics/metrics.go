// Package metrics registers the Prometheus instrumentation for the store
// and solver packages: one docker/go-metrics Namespace per subsystem,
// registered with the default Prometheus registry at package init, with
// timers and counters handed out as package-level variables the way a
// layered cache or proxy subsystem would instrument its own operations.
package metrics

import (
	"time"

	"github.com/docker/go-metrics"
)

// NamespacePrefix names this module's instrumentation namespace, for this
// module's domain.
const NamespacePrefix = "zeroinstall"

var (
	// StoreNamespace covers ImplementationStore operations: add, verify,
	// remove, optimise.
	StoreNamespace = metrics.NewNamespace(NamespacePrefix, "store", nil)

	// SolverNamespace covers BacktrackingSolver.Solve attempts.
	SolverNamespace = metrics.NewNamespace(NamespacePrefix, "solver", nil)
)

var (
	storeOpDuration = StoreNamespace.NewLabeledTimer("operation_duration_seconds", "Duration of store operations", "operation")
	storeOpTotal    = StoreNamespace.NewLabeledCounter("operations_total", "Number of store operations", "operation", "result")
	optimiseBytes   = StoreNamespace.NewCounter("optimise_reclaimed_bytes_total", "Bytes reclaimed by Optimise by hardlinking duplicate files")

	solveDuration = SolverNamespace.NewLabeledTimer("solve_duration_seconds", "Duration of BacktrackingSolver.Solve calls", "outcome")
	solveAttempts = SolverNamespace.NewLabeledCounter("solve_attempts_total", "Number of candidate attempts made by Solve calls", "outcome")
)

func init() {
	metrics.Register(StoreNamespace)
	metrics.Register(SolverNamespace)
}

// ObserveStoreOp records the duration and outcome of a single store
// operation (add, verify, remove, optimise), following the
// prometheusCacheProvider.Stat pattern: start a timer, run the operation,
// update the timer with the elapsed duration keyed by operation name.
func ObserveStoreOp(operation string, start time.Time, err error) {
	storeOpDuration.WithValues(operation).UpdateSince(start)
	result := "success"
	if err != nil {
		result = "error"
	}
	storeOpTotal.WithValues(operation, result).Inc(1)
}

// AddOptimisedBytes adds n to the running total of bytes reclaimed by
// Optimise across all stores sharing this process's metrics registry.
func AddOptimisedBytes(n uint64) {
	optimiseBytes.Inc(float64(n))
}

// ObserveSolve records one BacktrackingSolver.Solve call's wall-clock
// duration and attempt count, labeled by whether it found a solution.
func ObserveSolve(start time.Time, attempts int, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	solveDuration.WithValues(outcome).UpdateSince(start)
	solveAttempts.WithValues(outcome).Inc(float64(attempts))
}
