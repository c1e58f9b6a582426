package cli

import (
	"context"
	"fmt"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/store"
)

// withManager opens the configured store, executes the function, and handles cleanup.
func withManager(fn func(context.Context, *experiment.Manager) error) error {
	s, err := store.Open(cfg.Store, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	return fn(context.Background(), experiment.NewManager(s, cfg.ManagerOptions()))
}

func formatPercent(pct float64) string {
	if pct == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", pct)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
