// Command dagsim runs one discrete-event simulation of a Spark-like DAG
// execution engine: it loads a DAG file, builds a cluster, drives the
// scripted failure/autoscale events, and prints a completion-time and
// utilization report.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/khryptorgraphics/dagsim/internal/config"
	"github.com/khryptorgraphics/dagsim/internal/logging"
	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/sim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("dagsim: %v", err))
		os.Exit(1)
	}
}

// newRootCmd builds the cobra command tree, factory-function style: each
// command owns its flag set, bound onto the package viper instance so env
// vars and an optional config file layer underneath.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:     "dagsim",
		Short:   "Discrete-event simulator of a Spark-like DAG execution engine",
		Version: version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML file overriding cluster/script settings")

	root.AddCommand(runCmd(&cfgFile))
	return root
}

func runCmd(cfgFile *string) *cobra.Command {
	var (
		executors        int
		cores            int
		dagFile          string
		scriptedFailures []string
		scriptedAutos    []string
		autoReplace      bool
		autoReplaceDelay int
		seed             int64
		metricsAddr      string
		verbose          bool
		dryRun           bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print its completion report",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.BindPFlags(cmd.Flags())
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}
			return runSimulation(cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&executors, "executors", "e", 1, "executor count at t=0")
	flags.IntVarP(&cores, "cores", "c", 1, "cores per executor")
	flags.StringVarP(&dagFile, "file", "f", "", "DAG file (required)")
	flags.StringArrayVar(&scriptedFailures, "sf", nil, "scripted failure \"eid,t\", repeatable")
	flags.StringArrayVar(&scriptedAutos, "sa", nil, "scripted autoscale time, repeatable")
	flags.BoolVarP(&autoReplace, "auto-replace", "a", false, "auto-replace executors on failure")
	flags.IntVarP(&autoReplaceDelay, "auto-replace-delay", "d", 1, "auto-replace delay, seconds")
	flags.Int64Var(&seed, "seed", time.Now().UnixNano(), "RNG seed")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "optional Prometheus listen address (e.g. :9090)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "emit debug-level event logging")
	flags.BoolVar(&dryRun, "dry-run", false, "validate DAG and config, then exit without running")

	viper.BindPFlag("executors", flags.Lookup("executors"))
	viper.BindPFlag("cores", flags.Lookup("cores"))
	viper.BindPFlag("dag_file", flags.Lookup("file"))
	viper.BindPFlag("scripted_failures", flags.Lookup("sf"))
	viper.BindPFlag("scripted_autoscale", flags.Lookup("sa"))
	viper.BindPFlag("auto_replace", flags.Lookup("auto-replace"))
	viper.BindPFlag("auto_replace_delay", flags.Lookup("auto-replace-delay"))
	viper.BindPFlag("seed", flags.Lookup("seed"))
	viper.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag("dry_run", flags.Lookup("dry-run"))

	return cmd
}

func runSimulation(cfg *config.Config) error {
	cli := logging.NewCLILogger(cfg.Verbose)
	fmt.Println(logging.Banner(version))
	cli.Infof("loading DAG from %s", cfg.DAGFile)

	data, err := os.ReadFile(cfg.DAGFile)
	if err != nil {
		return fmt.Errorf("read DAG file: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	graph, err := dag.Load(data, rng)
	if err != nil {
		return err
	}

	failures, err := config.ParseFailures(cfg.ScriptedFailures)
	if err != nil {
		return err
	}
	autoscaleTimes, err := config.ParseAutoscales(cfg.ScriptedAutoscale)
	if err != nil {
		return err
	}

	opts := sim.Options{
		Executors:        cfg.Executors,
		Cores:            cfg.Cores,
		AutoReplace:      cfg.AutoReplace,
		AutoReplaceDelay: time.Duration(cfg.AutoReplaceDelay) * time.Second,
	}
	for _, f := range failures {
		opts.Failures = append(opts.Failures, sim.Failure{EID: f.EID, At: f.At})
	}
	for _, at := range autoscaleTimes {
		opts.Autoscales = append(opts.Autoscales, sim.Autoscale{At: at})
	}

	if cfg.DryRun {
		cli.Info("dry run: DAG and configuration are valid")
		if resolved, err := cfg.YAML(); err == nil {
			fmt.Print(resolved)
		}
		return nil
	}

	var metrics *sim.Metrics
	if cfg.MetricsAddr != "" {
		metrics = sim.NewMetrics()
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		cli.Infof("serving metrics on %s", cfg.MetricsAddr)
	}
	opts.Metrics = metrics

	eventLog := logging.NewEventLogger(os.Stdout, cfg.Verbose)
	ctrl := sim.New(graph, opts, eventLog)
	logging.VirtualClock(ctrl.Now)

	cli.Info("run starting")
	report := ctrl.Run()
	cli.Info("run finished")

	core, err := report.MarshalCore()
	if err != nil {
		return err
	}
	fmt.Println(logging.ReportLine(string(core)))

	full, err := json.MarshalIndent(report, "", "  ")
	if err == nil && cfg.Verbose {
		fmt.Fprintln(os.Stderr, string(full))
	}

	return nil
}
