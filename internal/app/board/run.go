package board

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"order-dashboard/internal/app"
	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/feed"
	"order-dashboard/internal/notify"
	"order-dashboard/internal/reconciler"
	"order-dashboard/internal/tui"
)

// Run drives the terminal board until the user quits or ctx is cancelled.
// Logs go to lg, which must not be the terminal.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := app.Open(ctx, cfg, "dashboard", lg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	board := notify.NewBoard(cfg.Sync.NotificationTTL, nil)
	defer board.Close()

	gw := st.Gateway(board)
	rec := reconciler.New(reconciler.ListFetcher(gw),
		reconciler.WithNotifier(board),
		reconciler.WithAlerter(&tui.Bell{Out: os.Stderr}),
		reconciler.WithLogger(lg.Named("dashboard.sync")),
		reconciler.WithNewWindow(cfg.Sync.NewWindow),
		reconciler.WithRefreshInterval(cfg.Sync.RefreshInterval),
	)
	go rec.Run(ctx)
	defer func() {
		rec.Close()
		<-rec.Done()
	}()

	if sub := st.Subscriber(); sub != nil {
		go feed.NewRunner(sub, rec, cfg.Sync.ResubscribeDelay, lg.Named("dashboard.feed")).Run(ctx)
	} else {
		lg.Info("feed_disabled", map[string]any{"feed": cfg.Sync.Feed})
	}

	p := tea.NewProgram(tui.New(rec, gw, board),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
