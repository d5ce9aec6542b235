package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballast/internal/risk"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleProfiles = `
profiles:
  default:
    description: baseline
    default: true
  tight:
    sizer: equal_weight
    constraints:
      - buying_power
      - max_position
    risk:
      max_position_pct: 0.10
      min_position_value: "500"
`

func TestRegistryLoadsProfiles(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap.Profiles, 2)

	def := snap.Profiles["default"]
	assert.True(t, def.Default)
	assert.Equal(t, "volatility", def.Sizer)
	assert.Equal(t, DefaultChain(), def.Constraints)

	tight := snap.Profiles["tight"]
	assert.Equal(t, "equal_weight", tight.Sizer)
	assert.Equal(t, []string{"buying_power", "max_position"}, tight.Constraints)
}

func TestRegistryResolveAppliesOverrides(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	base := risk.DefaultConfig()
	resolved, err := reg.Resolve("tight", base)
	require.NoError(t, err)

	assert.Equal(t, "tight", resolved.Name)
	assert.Equal(t, "equal_weight", resolved.Sizer.Name())
	require.Len(t, resolved.Constraints, 2)
	assert.Equal(t, "buying_power", resolved.Constraints[0].Name())
	assert.Equal(t, "max_position", resolved.Constraints[1].Name())

	assert.Equal(t, 0.10, resolved.Config.MaxPositionPct)
	assert.True(t, resolved.Config.MinPositionValue.Equal(decimal.NewFromInt(500)))
	// Fields without an override keep the base values.
	assert.Equal(t, base.RiskPerTrade, resolved.Config.RiskPerTrade)
	assert.Equal(t, base.MaxPositions, resolved.Config.MaxPositions)
}

func TestRegistryResolveFallsBackToDefault(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	resolved, err := reg.Resolve("nope", risk.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "default", resolved.Name)
	assert.Equal(t, "volatility", resolved.Sizer.Name())
}

func TestRegistryRejectsUnknownSizer(t *testing.T) {
	_, err := NewRegistry(writeProfiles(t, `
profiles:
  broken:
    sizer: martingale
`))
	require.Error(t, err)
}

func TestRegistryRejectsUnknownConstraint(t *testing.T) {
	_, err := NewRegistry(writeProfiles(t, `
profiles:
  broken:
    constraints:
      - vibes
`))
	require.Error(t, err)
}

func TestRegistryRejectsUnknownField(t *testing.T) {
	_, err := NewRegistry(writeProfiles(t, `
profiles:
  broken:
    sizzler: volatility
`))
	require.Error(t, err)
}

func TestRegistryResolveRejectsInvalidOverride(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, `
profiles:
  default:
    default: true
    risk:
      max_position_pct: 5.0
`))
	require.NoError(t, err)

	_, err = reg.Resolve("default", risk.DefaultConfig())
	require.Error(t, err)
	var inputErr *risk.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "config.max_position_pct", inputErr.Field)
}

func TestDefaultChainMatchesResolvableNames(t *testing.T) {
	for _, name := range DefaultChain() {
		c, err := resolveConstraint(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}
