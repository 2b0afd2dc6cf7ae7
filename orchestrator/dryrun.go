package orchestrator

import "github.com/autoqac-go/autoqac/model"

// DryRun runs the setup sequence's enumeration/detection/annotation steps
// but never starts a backup session or launches a subprocess, generalizing
// the teacher's `-dry-run` flag (spec §9 Supplemented Features). It reports
// every enumerated entry, not just the eligible ones, so a caller can see
// why a plugin would be skipped.
func (o *Orchestrator) DryRun(opts StartOptions) ([]model.DryRunResult, model.Game, error) {
	if err := o.checkPreconditions(opts); err != nil {
		return nil, model.GameUnknown, err
	}

	if err := o.cfgStore.FlushPendingSaves(); err != nil {
		o.logger.Warn("flush pending config saves failed", "error", err)
	}

	entries, game, err := o.prepareEntries(opts)
	if err != nil {
		return nil, model.GameUnknown, err
	}

	out := make([]model.DryRunResult, 0, len(entries))
	for _, e := range entries {
		out = append(out, dryRunResultFor(e))
	}
	return out, game, nil
}

func dryRunResultFor(e model.PluginEntry) model.DryRunResult {
	switch {
	case !e.IsSelected:
		return model.DryRunResult{PluginName: e.FileName, Status: model.DryRunWillSkip, Reason: "not selected in the load order"}
	case e.IsInSkipList:
		return model.DryRunResult{PluginName: e.FileName, Status: model.DryRunWillSkip, Reason: "present in the active skip list"}
	case e.WarningKind != model.WarningNone:
		return model.DryRunResult{PluginName: e.FileName, Status: model.DryRunWillSkip, Reason: string(e.WarningKind)}
	default:
		return model.DryRunResult{PluginName: e.FileName, Status: model.DryRunWillClean}
	}
}
