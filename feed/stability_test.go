package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStability(t *testing.T) {
	s, ok := ParseStability("testing")
	require.True(t, ok)
	require.Equal(t, Testing, s)

	_, ok = ParseStability("bogus")
	require.False(t, ok)
}

func TestEffectiveStabilityPrefersOverride(t *testing.T) {
	require.Equal(t, Developer, Effective(Buggy, Developer, Packaged))
}

func TestEffectiveStabilityClampsAtPolicy(t *testing.T) {
	require.Equal(t, Stable, Effective(Packaged, Unset, Stable))
}

func TestEffectiveStabilityBelowPolicyUnchanged(t *testing.T) {
	require.Equal(t, Buggy, Effective(Buggy, Unset, Stable))
}
