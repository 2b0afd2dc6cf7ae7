package cmdbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoqac-go/autoqac/model"
)

func TestValidatePluginNameAcceptsTypicalNames(t *testing.T) {
	for _, name := range []string{
		"Skyrim.esm",
		"My Mod (Patch) [v2].esp",
		"Unofficial Skyrim Special Edition Patch.esp",
		"Foo's Armor.esl",
	} {
		assert.NoError(t, ValidatePluginName(name), name)
	}
}

func TestValidatePluginNameRejectsInjectionAttempts(t *testing.T) {
	for _, name := range []string{
		"foo.esp; rm -rf /",
		"foo.esp && calc",
		"../../etc/passwd.esp",
		"$(whoami).esp",
		"foo.exe",
		"foo.esp`touch x`",
	} {
		assert.Error(t, ValidatePluginName(name), name)
	}
}

func TestBuildDirectGameSpecificBuildOmitsGameFlag(t *testing.T) {
	inv, err := BuildDirect("/opt/xedit/SSEEdit.exe", "Patch.esp", false, model.GameSSE, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/xedit/SSEEdit.exe", "-QAC", "-autoexit", "-autoload", "Patch.esp"}, inv.Argv)
	assert.Equal(t, "/opt/xedit", inv.Dir)
}

func TestBuildDirectUniversalBuildAddsGameFlag(t *testing.T) {
	inv, err := BuildDirect("/opt/xedit/xEdit.exe", "Patch.esp", true, model.GameFO4, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/xedit/xEdit.exe", "-FO4", "-QAC", "-autoexit", "-autoload", "Patch.esp"}, inv.Argv)
}

func TestBuildDirectUniversalBuildUnknownGameErrors(t *testing.T) {
	_, err := BuildDirect("/opt/xedit/xEdit.exe", "Patch.esp", true, model.GameUnknown, false)
	assert.Error(t, err)
}

func TestBuildDirectPartialFormsAddsFlags(t *testing.T) {
	inv, err := BuildDirect("/opt/xedit/SSEEdit.exe", "Patch.esp", false, model.GameSSE, true)
	require.NoError(t, err)
	assert.Contains(t, inv.Argv, "-iknowwhatimdoing")
	assert.Contains(t, inv.Argv, "-allowmakepartial")
}

func TestBuildDirectRejectsUnsafePluginName(t *testing.T) {
	_, err := BuildDirect("/opt/xedit/SSEEdit.exe", "foo.esp; rm -rf /", false, model.GameSSE, false)
	assert.Error(t, err)
}

func TestBuildMO2WrapsDirectInvocation(t *testing.T) {
	direct, err := BuildDirect("/opt/xedit/SSEEdit.exe", "Patch.esp", false, model.GameSSE, false)
	require.NoError(t, err)

	inv := BuildMO2("/opt/mo2/ModOrganizer.exe", direct)
	require.Len(t, inv.Argv, 5)
	assert.Equal(t, "/opt/mo2/ModOrganizer.exe", inv.Argv[0])
	assert.Equal(t, "run", inv.Argv[1])
	assert.Equal(t, "/opt/xedit/SSEEdit.exe", inv.Argv[2])
	assert.Equal(t, "-a", inv.Argv[3])
	assert.Contains(t, inv.Argv[4], "autoload")
	assert.Equal(t, "/opt/mo2", inv.Dir)
}
