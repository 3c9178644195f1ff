package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarchlab/ecusim/config"
	"github.com/sarchlab/ecusim/simulation"
)

type runOptions struct {
	configPath  string
	duration    time.Duration
	output      string
	trace       bool
	monitor     bool
	monitorPort int
	openMonitor bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation of a network.",
	Long: "`run --config network.yaml` builds the network, runs it for the " +
		"configured duration and records the monitor samples.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := config.Load(runOpts.configPath)
		if err != nil {
			return err
		}

		if err := runOpts.apply(cmd, n); err != nil {
			return err
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runNetwork(ctx, n, logger, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.configPath, "config", "c", "", "network file")
	f.DurationVar(&runOpts.duration, "duration", 0,
		"simulated duration, overriding the network file")
	f.StringVarP(&runOpts.output, "output", "o", "",
		"recording file, overriding the network file")
	f.BoolVar(&runOpts.trace, "trace", false, "record every frame")
	f.BoolVar(&runOpts.monitor, "monitor", false, "start the monitoring server")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the monitoring server")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"open the monitoring server in a browser")

	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}

// apply overrides the network with the flags that are set.
func (o runOptions) apply(cmd *cobra.Command, n *config.Network) error {
	flags := cmd.Flags()

	if flags.Changed("duration") {
		n.Simulation.Duration = config.D(o.duration)
	}

	if flags.Changed("output") {
		n.Simulation.Output = o.output
	}

	if flags.Changed("trace") {
		n.Simulation.TraceFrames = o.trace
	}

	if o.monitor || o.openMonitor {
		n.Monitor.Enabled = true
	}

	if flags.Changed("monitor-port") {
		n.Monitor.Port = o.monitorPort
	}

	return n.Validate()
}

func runNetwork(
	ctx context.Context,
	n *config.Network,
	logger *zap.Logger,
	w io.Writer,
) (err error) {
	s, err := simulation.MakeBuilder().
		WithNetwork(n).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Terminate()) }()

	if runOpts.openMonitor && s.MonitorURL() != "" {
		if err := browser.OpenURL(s.MonitorURL()); err != nil {
			logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	if err := s.Run(ctx); err != nil {
		return err
	}

	for _, e := range s.ECUs() {
		fmt.Fprintf(w, "%s: sent %d, received %d\n",
			e.Name(), e.NumSent(), e.NumReceived())
	}

	fmt.Fprintf(w, "bus load: %.2f%%\n", 100*s.Traffic().BusLoad())

	return nil
}
