package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/snapetech/strmsync/internal/history"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metrics"
)

// Sync loads history from historyPath, runs one pass and saves the grown history.
// A corrupt history file is replaced by an empty one (the pass then rewrites everything);
// any other read error aborts before touching the tree. Dry runs never save.
func (e *Engine) Sync(ctx context.Context, historyPath string) (Report, error) {
	log := e.Log
	if log == nil {
		log = logger.Default
	}
	h, err := history.Load(historyPath)
	warning := ""
	if err != nil {
		if !errors.Is(err, history.ErrCorrupt) {
			return Report{}, err
		}
		log.Warnf("reconcile: %v; starting from empty history", err)
		warning = err.Error()
	}

	rep := e.Run(ctx, h)
	rep.HistoryWarning = warning
	metrics.ObservePass(rep.Started, rep.Finished)
	if rep.DryRun {
		return rep, nil
	}
	if err := h.Save(historyPath); err != nil {
		return rep, fmt.Errorf("reconcile: %w", err)
	}
	return rep, nil
}
