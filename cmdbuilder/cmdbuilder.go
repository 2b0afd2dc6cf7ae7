// Package cmdbuilder implements the Command Builder: producing argv/working
// -directory pairs for direct and MO2-wrapped xEdit invocations, with
// injection-resistant quoting.
package cmdbuilder

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/apparentlymart/go-shquot/shquot"

	"github.com/autoqac-go/autoqac/model"
)

// pluginNameAllowlist matches a safe plugin file name: letters, digits,
// whitespace, and a small set of punctuation common in mod file names,
// ending with a recognized plugin extension. Anything else is rejected to
// prevent shell/argv injection through a malicious load-order entry.
var pluginNameAllowlist = regexp.MustCompile(`^[\w\s\-.()\[\]']+\.(?:esp|esm|esl)$`)

// gameFlags maps a detected game to the -<Game> flag xEdit's universal build
// requires to select which master set to load.
var gameFlags = map[model.Game]string{
	model.GameFO3:      "-FO3",
	model.GameFNV:      "-FNV",
	model.GameFO4:      "-FO4",
	model.GameFO4VR:    "-FO4VR",
	model.GameSSE:      "-SSE",
	model.GameSkyrimVR: "-TES5VR",
	model.GameTES4:      "-TES4",
}

// Invocation is a ready-to-launch command: argv[0] plus its arguments, and
// the working directory the Process Executor must launch it from.
type Invocation struct {
	Argv []string
	Dir  string
}

// ValidatePluginName rejects anything that isn't a plain plugin file name,
// closing off shell metacharacter injection through load-order entries.
func ValidatePluginName(name string) error {
	if !pluginNameAllowlist.MatchString(name) {
		return fmt.Errorf("cmdbuilder: plugin file name fails allowlist: %q", name)
	}
	return nil
}

// BuildDirect produces the direct xEdit invocation for one plugin.
// isUniversalBuild and game together decide whether a -<Game> flag is
// required (the universal "xEdit" build needs one; a game-specific build
// like SSEEdit.exe does not).
func BuildDirect(xeditPath, pluginFileName string, isUniversalBuild bool, game model.Game, partialForms bool) (Invocation, error) {
	if err := ValidatePluginName(pluginFileName); err != nil {
		return Invocation{}, err
	}

	argv := []string{xeditPath}
	if isUniversalBuild {
		flag, ok := gameFlags[game]
		if !ok {
			return Invocation{}, fmt.Errorf("cmdbuilder: universal build requires a known game, got %q", game)
		}
		argv = append(argv, flag)
	}
	argv = append(argv, "-QAC", "-autoexit", "-autoload", pluginFileName)
	if partialForms {
		argv = append(argv, "-iknowwhatimdoing", "-allowmakepartial")
	}

	return Invocation{Argv: argv, Dir: filepath.Dir(xeditPath)}, nil
}

// BuildMO2 wraps a direct invocation through Mod Organizer 2's "run"
// subcommand, so xEdit sees MO2's virtualized data directory.
func BuildMO2(mo2Path string, direct Invocation) Invocation {
	quotedArgs := quoteArgsForEmbedding(direct.Argv[1:])
	escaped := strings.ReplaceAll(quotedArgs, `"`, `\"`)

	argv := []string{
		mo2Path, "run", direct.Argv[0], "-a", escaped,
	}
	return Invocation{Argv: argv, Dir: filepath.Dir(mo2Path)}
}

// quoteArgsForEmbedding renders xedit's own arguments as a single
// shell-quoted command-line string, suitable for embedding inside MO2's "-a"
// flag (which re-parses it as one string, not as a real argv). We reuse
// go-shquot's POSIX/Windows splitters for the actual quoting rules rather
// than hand-rolling escaping.
func quoteArgsForEmbedding(args []string) string {
	var quot shquot.QS
	if runtime.GOOS == "windows" {
		quot = shquot.WindowsArgvSplit
	} else {
		quot = shquot.POSIXShellSplit
	}
	cmdLine := append([]string{"xedit"}, args...)
	_, rest := quot(cmdLine)
	return rest
}
