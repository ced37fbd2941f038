package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/proxypool"
	"igtail/pkg/ui"
)

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "Inspect the proxy pool",
}

var proxiesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Send one request through every configured proxy",
	Long: `Send one request to the platform base URL through every configured proxy and
report whether it answered. Failures are reported to the pool, so the fail
count column shows what a collect run would see.`,
	Args: cobra.NoArgs,
	RunE: runProxiesCheck,
}

func init() {
	rootCmd.AddCommand(proxiesCmd)
	proxiesCmd.AddCommand(proxiesCheckCmd)

	proxiesCheckCmd.Flags().StringSliceVar(&proxyFlags, "proxy", nil, "proxy address (repeatable, \"direct\" for no proxy)")
}

func runProxiesCheck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(map[string]interface{}{"proxies": proxyFlags}); err != nil {
		return err
	}
	if len(cfg.Proxy.Addresses) == 0 {
		return fmt.Errorf("no proxies configured")
	}

	pool, err := proxypool.New(cfg.Proxy, proxypool.WithLogger(logger.WithComponent("proxypool")))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	results := make(map[string]ui.ProxyRow)
	// Acquire hands out the least recently used proxy, so Size acquisitions
	// visit each proxy once.
	for i, n := 0, pool.Size(); i < n; i++ {
		proxy, ok := pool.Acquire(ctx, false, 0)
		if !ok {
			break
		}
		latency, err := probe(ctx, proxy)
		if err != nil {
			pool.ReportFailure(proxy)
		} else {
			pool.ReportSuccess(proxy)
		}
		results[proxy.Address] = ui.ProxyRow{Address: proxy.Address, Healthy: err == nil, Latency: latency, Err: err}
	}

	rows := make([]ui.ProxyRow, 0, len(results))
	healthy := 0
	for _, state := range pool.Snapshot() {
		row, ok := results[state.Address]
		if !ok {
			continue
		}
		row.FailCount = state.FailCount
		if row.Healthy {
			healthy++
		}
		rows = append(rows, row)
	}

	fmt.Println(ui.RenderProxies(rows))
	ui.PrintInfo("Healthy", fmt.Sprintf("%d/%d", healthy, len(rows)))
	if healthy == 0 {
		return errs.ErrAllProxiesExhausted
	}
	return nil
}

func probe(ctx context.Context, proxy *proxypool.Proxy) (time.Duration, error) {
	client, err := proxypool.Client(proxy, cfg.HTTP)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Instagram.BaseURL+"/", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", cfg.Instagram.UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, errs.NewNetworkError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}
