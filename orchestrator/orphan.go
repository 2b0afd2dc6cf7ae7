package orchestrator

import (
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// xeditStems are the file-stem names (case-insensitive) a running xEdit
// process may be found under, covering every game-specific build plus the
// universal one. Mirrors gamedetect's stemGames keys, with "xedit" added for
// the universal build gamedetect itself maps to Unknown.
var xeditStems = map[string]struct{}{
	"fo3edit": {}, "fnvedit": {}, "fo4edit": {}, "fo4vredit": {},
	"sseedit": {}, "tes5edit": {}, "skyrimvredit": {}, "tes4edit": {}, "xedit": {},
}

// cleanOrphanedProcesses best-effort kills any running process whose
// executable stem matches a known xEdit build, per spec §4.3 setup step 1.
// A left-over xEdit instance from a crashed prior session holds a file lock
// on the load order and would make the new session's launch fail outright;
// failures here are swallowed since this is a best-effort sweep, not a
// precondition.
func cleanOrphanedProcesses() {
	procs, err := process.Processes()
	if err != nil {
		return
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := xeditStems[strings.ToLower(stem)]; !ok {
			continue
		}
		_ = p.Kill()
	}
}
