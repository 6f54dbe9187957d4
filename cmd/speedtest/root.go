package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abhayap/speedtest-go/internal/logging"
	"github.com/abhayap/speedtest-go/internal/model"
	"github.com/abhayap/speedtest-go/internal/output"
	"github.com/abhayap/speedtest-go/internal/speedtest"
)

var version = "dev"

type flags struct {
	latencyOnly  bool
	qualityOnly  bool
	downloadOnly bool
	uploadOnly   bool
	share        bool
	verbose      bool
	outputFormat string
	testServer   string
	pingServer   string
	iface        string
	configPath   string
	timeout      time.Duration
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:     "speedtest",
		Short:   "Measure latency, jitter, packet loss, and throughput to the nearest server",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, f)
		},
	}

	cmd.Flags().BoolVar(&f.latencyOnly, "latency", false, "Measure latency and jitter only")
	cmd.Flags().BoolVar(&f.qualityOnly, "quality", false, "Measure packet loss only")
	cmd.Flags().BoolVar(&f.downloadOnly, "download", false, "Measure download throughput only")
	cmd.Flags().BoolVar(&f.uploadOnly, "upload", false, "Measure upload throughput only")
	cmd.Flags().BoolVar(&f.share, "share", false, "Generate a share-image URL")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print a colored progress banner to stderr")
	cmd.Flags().StringVar(&f.testServer, "test-server", "", "Skip discovery, use this host:port for throughput")
	cmd.Flags().StringVar(&f.pingServer, "ping-server", "", "Skip discovery, use this host:port for packet loss")
	cmd.Flags().StringVar(&f.iface, "interface", "", "Bind outbound connections to this network interface")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML file overriding the adaptive-profile table")
	cmd.Flags().StringVar(&f.outputFormat, "output", "verbose", "Output format: verbose|text")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 90*time.Second, "Overall run timeout")

	return cmd
}

func runRoot(cmd *cobra.Command, f *flags) error {
	log := logging.New("info")
	if !f.verbose {
		log = logging.Nop()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	anyPhaseSelected := f.latencyOnly || f.qualityOnly || f.downloadOnly || f.uploadOnly
	opts := speedtest.Options{
		Interface:          f.iface,
		TestServerAddr:     f.testServer,
		PingServerAddr:     f.pingServer,
		GenerateShareImage: f.share,
		ConfigOverridePath: f.configPath,
		SkipLatency:        anyPhaseSelected && !f.latencyOnly,
		SkipQuality:        anyPhaseSelected && !f.qualityOnly,
		SkipDownload:       anyPhaseSelected && !f.downloadOnly,
		SkipUpload:         anyPhaseSelected && !f.uploadOnly,
	}

	if f.verbose {
		banner := color.New(color.FgCyan, color.Bold)
		banner.Fprintln(os.Stderr, "speedtest: running...")
		opts.OnProgress = func(ok bool) {
			if ok {
				color.New(color.FgGreen).Fprint(os.Stderr, ".")
			} else {
				color.New(color.FgRed).Fprint(os.Stderr, "x")
			}
		}
		opts.OnMeasurement = func(m model.Measurement) {
			fmt.Fprintf(os.Stderr, "\n%s: %.2f %s\n", m.Kind, m.Value, m.Unit)
		}
	}

	result, err := speedtest.Run(ctx, opts, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, output.FormatError(err))
		return err
	}

	if f.outputFormat == "text" {
		fmt.Print(output.Format(result))
	} else {
		fmt.Print(output.FormatText(result))
	}
	return nil
}
