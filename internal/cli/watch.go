package cli

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/photodrop/internal/history"
	"github.com/dmitrijs2005/photodrop/internal/kvstore"
)

// watchChanges reports history updates until ctx is done or changes closes.
func (a *App) watchChanges(ctx context.Context, changes <-chan kvstore.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			a.reportChange(ctx, c)
		}
	}
}

func (a *App) reportChange(ctx context.Context, c kvstore.Change) {
	switch {
	case c.Cleared || (c.Key == kvstore.KeyUploadHistory && c.Deleted):
		a.println("\nHistory cleared.")
	case c.Key == kvstore.KeyUploadHistory:
		var records []history.Record
		if err := json.Unmarshal(c.Value, &records); err != nil {
			a.log.Debug(ctx, "decode history change failed", "error", err)
			return
		}
		a.printf("\nHistory updated: %d uploads\n", len(records))
	}
}
