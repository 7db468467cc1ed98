package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afclient"
	"github.com/fruitbox12/validator-azero/afmetrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newWatchCmd(log *slog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use: "watch",

		Short: "Follow a chain store and serve chain state metrics",

		Long: `watch polls a chain store for best and finalized block changes,
feeds them to the chain state tracker,
and serves the resulting Prometheus metrics at /metrics.

The store does not record block authorship,
so the own-block counters stay at zero.
`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			interval := v.GetDuration("interval")
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive (got %s)", interval)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			store, err := openStore(ctx, v)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("Error closing chain store", "err", err)
				}
			}()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			ln, err := net.Listen("tcp", v.GetString("listen"))
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}
			log.Info("Serving metrics", "addr", ln.Addr().String())

			srv := &http.Server{
				Handler:           newMetricsRouter(reg),
				ReadHeaderTimeout: 5 * time.Second,
			}
			srvErr := make(chan error, 1)
			go func() {
				srvErr <- srv.Serve(ln)
			}()

			poller := afclient.NewPoller(ctx, log.With("sys", "poller"), afclient.PollerConfig{
				Backend:  store,
				Interval: interval,
				Origin:   afchain.OriginNetworkBroadcast,
			})
			tracker := afmetrics.NewTracker(ctx, log.With("sys", "tracker"), afmetrics.TrackerConfig{
				Backend:    store,
				Measure:    afmetrics.NewMeasure(log, reg),
				Imports:    poller.Imports(),
				Finalities: poller.Finalities(),
			})

			select {
			case <-ctx.Done():
			case err = <-srvErr:
				log.Warn("Metrics server stopped", "err", err)
			}

			cancel()
			tracker.Wait()
			poller.Wait()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil && !errors.Is(shutErr, http.ErrServerClosed) {
				log.Warn("Error shutting down metrics server", "err", shutErr)
			}

			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	addStoreFlags(cmd)
	cmd.Flags().String("listen", "127.0.0.1:9615", "Address for the metrics HTTP server")
	cmd.Flags().Duration("interval", time.Second, "How often to poll the chain store")

	return cmd
}

func newMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", afmetrics.Handler(reg)).Methods("GET")

	return r
}
