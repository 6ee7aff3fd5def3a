package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cboone/sikulibridge"
	"github.com/cboone/sikulibridge/catalog"
)

func newStartCmd() *cobra.Command {
	var (
		port        int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the engine and keep it running until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := sikulibridge.NewPrometheusMetricsCollector("")
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
				server := &http.Server{
					Addr:         metricsAddr,
					Handler:      mux,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 5 * time.Second,
				}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.WithError(err).WithField("addr", metricsAddr).Error("Could not start metrics server")
					}
				}()
				defer server.Close()
			}

			b, err := sikulibridge.New(ctx, bridgeOptions(sikulibridge.ModeNew, sikulibridge.WithMetrics(metrics))...)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.StartSikuliProcess(ctx, port); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Endpoint().URL())

			select {
			case <-ctx.Done():
				log.Info("Stopping engine")
			case <-b.Stopped():
				log.Warn("Engine stopped")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "engine port (default: a free port)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func newKeywordsCmd() *cobra.Command {
	var (
		live bool
		docs bool
		port int
	)
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List keywords, from the bundled catalog or a live engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				b   *sikulibridge.Bridge
				err error
			)
			if live || port > 0 {
				b, err = openBridge(ctx, port, sikulibridge.WithLiveKeywords())
			} else {
				b, err = sikulibridge.New(ctx, bridgeOptions(sikulibridge.ModeNew)...)
			}
			if err != nil {
				return err
			}
			defer b.Close()

			names, err := b.GetKeywordNames()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				if !docs {
					fmt.Fprintln(out, name)
					continue
				}
				kwArgs, err := b.GetKeywordArguments(name)
				if err != nil {
					return err
				}
				doc, err := b.GetKeywordDocumentation(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %v\n    %s\n\n", name, kwArgs, doc)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "start the engine and read keywords from it")
	cmd.Flags().BoolVar(&docs, "docs", false, "print arguments and documentation")
	cmd.Flags().IntVar(&port, "connect", 0, "read keywords from an engine already listening on this port")
	return cmd
}

func newRunCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "run KEYWORD [ARG...]",
		Short: "Run one keyword and print its return value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBridge(ctx, port)
			if err != nil {
				return err
			}
			defer b.Close()

			kwArgs := make([]interface{}, 0, len(args)-1)
			for _, a := range args[1:] {
				kwArgs = append(kwArgs, a)
			}
			ret, err := b.RunKeyword(ctx, args[0], kwArgs)
			if err != nil {
				return err
			}
			if ret != nil && ret != "" {
				fmt.Fprintln(cmd.OutOrStdout(), ret)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "connect", 0, "use an engine already listening on this port")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var (
		out   string
		check bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Write the keyword catalog of the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := out
			if check {
				dir, err := os.MkdirTemp("", "sikulibridge-catalog-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				path = filepath.Join(dir, filepath.Base(out))
			}

			b, err := sikulibridge.New(ctx, bridgeOptions(sikulibridge.ModeCreate, sikulibridge.WithCatalogPath(path))...)
			if err != nil {
				return err
			}
			defer b.Close()

			if !check {
				return nil
			}
			return checkCatalog(cmd, out, path)
		},
	}
	cmd.Flags().StringVar(&out, "out", "keywords.yaml", "catalog file to write")
	cmd.Flags().BoolVar(&check, "check", false, "compare the engine against the existing catalog file instead of writing it")
	return cmd
}

func checkCatalog(cmd *cobra.Command, wantPath, gotPath string) error {
	want, err := catalog.Load(wantPath)
	if err != nil {
		return err
	}
	got, err := catalog.Load(gotPath)
	if err != nil {
		return err
	}

	changes := catalog.Diff(want, got)
	for _, c := range changes {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	if len(changes) > 0 {
		return fmt.Errorf("catalog %s is out of date: %d keywords differ", wantPath, len(changes))
	}
	return nil
}
