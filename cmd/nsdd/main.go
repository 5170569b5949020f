// Command nsdd runs the network service discovery orchestrator as a
// standalone process, wiring the config loader, metrics sink, and Machine
// event loop together the way a platform integration would.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nsdservice/nsdd/internal/config"
	"github.com/nsdservice/nsdd/internal/metrics"
	"github.com/nsdservice/nsdd/nsd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var metricsAddr string

	root := &cobra.Command{
		Use:   "nsdd",
		Short: "Network service discovery orchestrator",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator event loop until signalled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, metricsAddr)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to an optional config file layered under environment variables")
	serve.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics and the /dump debug endpoint on, e.g. :9090 (disabled if empty)")

	var dumpAddr string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Fetch the running orchestrator's plain-text transition log over its /dump debug endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.OutOrStdout(), dumpAddr)
		},
	}
	dump.Flags().StringVar(&dumpAddr, "addr", "http://localhost:9090", "base address of a running nsdd serve --metrics-addr endpoint")

	root.AddCommand(serve, dump)
	return root
}

func runServe(configPath, metricsAddr string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var sink metrics.Sink = metrics.Noop{}
	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(reg)
	}

	m, err := nsd.New(
		nsd.WithConfig(cfg),
		nsd.WithMetrics(sink),
		nsd.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("construct machine: %w", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/dump", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			io.WriteString(w, m.Dump())
		})
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("nsdd starting")
	m.Run(ctx)
	log.Info("nsdd stopped")
	return nil
}

// runDump fetches the plain-text transition log from a running serve
// process's debug endpoint and writes it to out.
func runDump(out io.Writer, addr string) error {
	resp, err := http.Get(addr + "/dump")
	if err != nil {
		return fmt.Errorf("fetch dump: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch dump: unexpected status %s", resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
