package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndStatic(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Registration{ID: "core", EntryPoint: noop}))
	require.NoError(t, r.Register(Registration{ID: "wm", DependsOn: []string{"core"}, EntryPoint: noop}))

	assert.Equal(t, []string{"core", "wm"}, r.Static())
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register(Registration{EntryPoint: noop}))
	assert.Error(t, r.Register(Registration{ID: "x"}))

	require.NoError(t, r.Register(Registration{ID: "core", EntryPoint: noop}))
	assert.ErrorIs(t, r.Register(Registration{ID: "core", EntryPoint: noop}), ErrDuplicateModule)
}

func TestRegistry_CopiesDependencies(t *testing.T) {
	r := NewRegistry(nil)
	deps := []string{"core"}
	r.MustRegister(
		Registration{ID: "core", EntryPoint: noop},
		Registration{ID: "wm", DependsOn: deps, EntryPoint: noop},
	)
	deps[0] = "ghost"

	sorted, err := r.Sorted()
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "wm"}, ids(sorted))
}

func TestRegistry_FrozenAfterSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister(Registration{ID: "core", EntryPoint: noop})
	_, err := r.Sorted()
	require.NoError(t, err)

	assert.ErrorIs(t, r.Register(Registration{ID: "late", EntryPoint: noop}), ErrRegistryFrozen)
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	assert.Panics(t, func() {
		r.MustRegister(
			Registration{ID: "core", EntryPoint: noop},
			Registration{ID: "core", EntryPoint: noop},
		)
	})
}

func TestDynamicModulesUnsupported(t *testing.T) {
	assert.ErrorIs(t, RegisterDynamicModule("plugin", noop, nil), ErrDynamicModulesUnsupported)
	assert.False(t, EnableDynamicModule("plugin"))
	assert.Empty(t, PresentDynamicModules())
}

func TestStage_StringAndParse(t *testing.T) {
	for st := StageLoad; st <= StagePostDeinit; st++ {
		parsed, err := ParseStage(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}
	_, err := ParseStage("Bogus")
	assert.Error(t, err)
	assert.True(t, StageInit < StageRunning && StageRunning < StagePreDeinit)
}
