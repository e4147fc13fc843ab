package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/contentsync/internal/adapters/driven/fragments"
	"github.com/custodia-labs/contentsync/internal/adapters/driving/webhook"
	"github.com/custodia-labs/contentsync/internal/core/services"
	"github.com/custodia-labs/contentsync/internal/logger"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook receiver commands",
}

var webhookServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive change webhooks from the CMS",
	Long: `Starts an HTTP receiver that applies each webhook delivery as a
single-node update or delete.

While serving, changes to the fragments directory rebuild the sourcing plan,
and a scheduled sync runs when webhook.sync_interval is set.

The CMS should POST the webhook JSON body to /webhook. When webhook.secret
is set the request must carry it in the X-Webhook-Secret header.`,
	RunE: runWebhookServe,
}

func init() {
	webhookServeCmd.Flags().String("addr", "", "listen address (default from config)")
	webhookCmd.AddCommand(webhookServeCmd)
	rootCmd.AddCommand(webhookCmd)
}

func runWebhookServe(cmd *cobra.Command, _ []string) error {
	if syncService == nil || appConfig == nil {
		return errors.New("sync service not configured")
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	if addr == "" {
		addr = appConfig.Webhook.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := webhook.NewServer(addr, appConfig.Webhook.Secret, syncService)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("webhook server shutdown: %v", err)
		}
	}()
	cmd.Printf("Receiving webhooks on %s\n", server.URL())

	g, ctx := errgroup.WithContext(ctx)

	if planService != nil {
		watcher := fragments.NewWatcher(appConfig.FragmentsDir, fragments.DefaultDebounce, func() {
			logger.Info("Fragments changed, rebuilding sourcing plan on next sync")
			planService.Invalidate()
		})
		g.Go(func() error {
			return ignoreCanceled(watcher.Run(ctx))
		})
	}

	if appConfig.Webhook.SyncInterval > 0 {
		scheduler := services.NewScheduler(appConfig.Webhook.SyncInterval, syncService)
		g.Go(func() error {
			return ignoreCanceled(scheduler.Start(ctx))
		})
		g.Go(func() error {
			<-ctx.Done()
			return scheduler.Stop()
		})
	}

	g.Go(func() error {
		select {
		case err := <-server.Err():
			return fmt.Errorf("webhook server: %w", err)
		case <-ctx.Done():
			return nil
		}
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
