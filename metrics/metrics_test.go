package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveStoreOpDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		ObserveStoreOp("add", time.Now(), nil)
		ObserveStoreOp("add", time.Now(), errors.New("boom"))
	})
}

func TestAddOptimisedBytesDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		AddOptimisedBytes(1024)
	})
}

func TestObserveSolveDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		ObserveSolve(time.Now(), 12, true)
		ObserveSolve(time.Now(), 1000, false)
	})
}

func TestNamespacesRegistered(t *testing.T) {
	require.NotNil(t, StoreNamespace)
	require.NotNil(t, SolverNamespace)
}
