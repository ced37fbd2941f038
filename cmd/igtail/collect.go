package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igtail/internal/worker"
	"igtail/pkg/accounts"
	"igtail/pkg/checkpoint"
	"igtail/pkg/harvest"
	"igtail/pkg/instagram"
	"igtail/pkg/logger"
	"igtail/pkg/models"
	"igtail/pkg/proxypool"
	"igtail/pkg/storage"
	"igtail/pkg/ui"
)

var (
	proxyFlags   []string
	accountsPath string
	storeKind    string
	variant      string
	minTimestamp int64
	outputDir    string
	workers      int
	incremental  bool
	resetCursor  bool
	notify       bool
)

var collectCmd = &cobra.Command{
	Use:   "collect <username>...",
	Short: "Collect profile summaries and recent posts for one or more accounts",
	Long: `Collect the profile summary and every post newer than the minimum timestamp
for each target account. Results are written to <output>/<username>.json.

Targets are processed concurrently by --workers workers sharing one proxy pool
and one account pool. A proxy failure is retried on a fresh proxy, a challenged
host account is taken out of rotation and the next working one is used.`,
	Example: `  # Collect two accounts through the configured proxies
  igtail collect natgeo nasa

  # Route through a SOCKS5 proxy and a direct connection
  igtail collect natgeo --proxy socks5://127.0.0.1:1080 --proxy direct

  # Only fetch posts newer than the previous run
  igtail collect natgeo --incremental`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringSliceVar(&proxyFlags, "proxy", nil, "proxy address (repeatable, \"direct\" for no proxy)")
	collectCmd.Flags().StringVar(&accountsPath, "accounts", "", "account store path")
	collectCmd.Flags().StringVar(&storeKind, "store", "", "account store backend (json, encrypted, keyring, sqlite)")
	collectCmd.Flags().StringVar(&variant, "variant", "", "client variant (web-authenticated, web-anonymous, mobile-authenticated)")
	collectCmd.Flags().Int64Var(&minTimestamp, "min-timestamp", 0, "ignore posts published before this unix time")
	collectCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	collectCmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of targets collected concurrently")
	collectCmd.Flags().BoolVar(&incremental, "incremental", false, "start after the newest post of the previous run")
	collectCmd.Flags().BoolVar(&resetCursor, "reset", false, "forget stored checkpoints of the targets before collecting")
	collectCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the batch finishes")
}

func collectFlags() map[string]interface{} {
	return map[string]interface{}{
		"proxies":       proxyFlags,
		"accounts":      accountsPath,
		"store":         storeKind,
		"variant":       variant,
		"min-timestamp": minTimestamp,
		"output":        outputDir,
		"workers":       workers,
		"incremental":   incremental,
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	if err := loadConfig(collectFlags()); err != nil {
		return err
	}
	log := logger.WithComponent("cli")

	usernames := make([]string, 0, len(args))
	for _, arg := range args {
		name := instagram.SanitizeUsername(arg)
		if !instagram.IsValidUsername(name) {
			return fmt.Errorf("invalid username %q", arg)
		}
		usernames = append(usernames, name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accPool, closeStore, err := openAccountPool(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stats := accPool.Stats()
	if stats[accounts.StatusWorking] == 0 && cfg.Accounts.WaitTimeout == 0 {
		ui.NewNotifier(nil, os.Stderr).NoWorkingAccounts(len(accPool.List()))
		return fmt.Errorf("no working accounts in %s store", cfg.Accounts.Store)
	}

	if len(cfg.Proxy.Addresses) == 0 {
		log.Warn("No proxies configured, connecting directly")
		cfg.Proxy.Addresses = []string{proxypool.Direct}
	}
	proxies, err := proxypool.New(cfg.Proxy, proxypool.WithLogger(logger.WithComponent("proxypool")))
	if err != nil {
		return err
	}

	sink, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	var harvestOpts []harvest.Option
	var checkpoints worker.Checkpointer
	if cfg.Output.Incremental {
		cps, err := checkpoint.NewManager("")
		if err != nil {
			return err
		}
		if resetCursor {
			for _, u := range usernames {
				if err := cps.Delete(u); err != nil {
					return err
				}
			}
		}
		harvestOpts = append(harvestOpts, harvest.WithMinTimestamp(cps.MinTimestamp))
		checkpoints = cps
	}

	harvester := harvest.New(cfg, proxies, accPool, harvestOpts...)
	runner := harvest.NewRunner(harvester, accPool, cfg, nil, nil)

	if !quiet {
		ui.PrintInfo("Targets", strings.Join(usernames, ", "))
		ui.PrintInfo("Variant", cfg.Instagram.ClientVariant)
		ui.PrintInfo("Proxies", fmt.Sprintf("%d", proxies.Size()))
		ui.PrintInfo("Working accounts", fmt.Sprintf("%d", stats[accounts.StatusWorking]))
		fmt.Println()
	}

	var progressOut io.Writer = os.Stdout
	if quiet {
		progressOut = io.Discard
	}
	tracker := ui.NewStatusTracker(len(usernames), progressOut)
	collector := &trackedCollector{next: runner, tracker: tracker}

	results := worker.RunAll(ctx, cfg.Output.Workers, usernames, collector, sink, checkpoints, log)

	rows := make([]ui.TargetRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, targetRow(r))
	}
	done, failed, posts := tracker.Counts()

	if !quiet {
		fmt.Println()
		fmt.Println(ui.RenderTargets(rows))
		fmt.Println(ui.Totals(done, failed, posts, tracker.Elapsed()))
	}
	if notify {
		ui.NewNotifier(ui.PlatformSender(), progressOut).BatchFinished(done, failed, posts)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(usernames))
	}
	return nil
}

// trackedCollector reports every finished target to the progress tracker.
type trackedCollector struct {
	next    worker.Collector
	tracker *ui.StatusTracker
}

func (c *trackedCollector) Run(ctx context.Context, username string) (*models.CollectedData, error) {
	data, err := c.next.Run(ctx, username)
	posts := 0
	if data != nil {
		posts, _ = data.Counts()
	}
	c.tracker.Record(username, posts, err)
	return data, err
}

func targetRow(r worker.Result) ui.TargetRow {
	row := ui.TargetRow{
		Username: r.Job.Username,
		Duration: r.Duration,
		Err:      r.Error,
	}
	if r.Data == nil {
		return row
	}
	row.Posts, row.Failed = r.Data.Counts()
	row.Newest = r.Data.NewestPost()
	if perr := r.Data.Account.Err(); perr != nil && row.Err == nil {
		row.Err = perr
	}
	return row
}

func openAccountPool(ctx context.Context) (*accounts.Pool, func(), error) {
	store, closer, err := accounts.OpenStore(cfg.Accounts)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open account store: %w", err)
	}
	closeStore := func() {
		if err := closer(); err != nil {
			logger.WithError(err).Warn("Failed to close account store")
		}
	}

	pool := accounts.NewPool(store, accounts.WithLogger(logger.WithComponent("accounts")))
	if err := pool.LoadAll(ctx); err != nil {
		closeStore()
		return nil, func() {}, fmt.Errorf("failed to load accounts: %w", err)
	}
	return pool, closeStore, nil
}
