// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/deepmon/deepmon/config"
	"github.com/deepmon/deepmon/internal/capture"
	"github.com/deepmon/deepmon/internal/device"
	"github.com/deepmon/deepmon/internal/exporter/csv"
	"github.com/deepmon/deepmon/internal/exporter/prometheus"
	"github.com/deepmon/deepmon/internal/exporter/stdout"
	"github.com/deepmon/deepmon/internal/logger"
	"github.com/deepmon/deepmon/internal/monitor"
	"github.com/deepmon/deepmon/internal/resource"
	"github.com/deepmon/deepmon/internal/server"
	"github.com/deepmon/deepmon/internal/service"
	"github.com/deepmon/deepmon/internal/topology"
	"github.com/deepmon/deepmon/internal/version"
	"k8s.io/utils/ptr"
)

func main() {
	// parse args and config and exit with error if there is an error
	cfg, err := parseArgsAndConfig(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(logger)
	printConfigInfo(logger, cfg)

	services, err := createServices(logger, cfg)
	if err != nil {
		logger.Error("failed to create services", "error", err)
		os.Exit(1)
	}

	if err := service.Init(logger, services); err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// the signal handler is the first to return on SIGINT / SIGTERM
	services = append(services, service.NewSignalHandler(logger, syscall.SIGINT, syscall.SIGTERM))

	logger.Info("Starting deepmon")
	if err := service.Run(context.Background(), logger, services); err != nil {
		logger.Error("deepmon terminated with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Graceful shutdown completed")
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Info("deepmon version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func parseArgsAndConfig(args []string) (*config.Config, error) {
	const appName = "deepmon"
	app := kingpin.New(appName, "Per thread and per container performance and energy monitor.")
	app.Version(version.Info().String())

	configFile := app.Flag("config.file", "Path to YAML configuration file").String()
	updateConfig := config.RegisterFlags(app)
	if _, err := app.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %s\n", appName, err)
		return nil, err
	}

	logger := logger.New("info", "text", os.Stderr)
	cfg := config.DefaultConfig()
	if *configFile != "" {
		logger.Info("Loading configuration file", "path", *configFile)
		loadedCfg, err := config.FromFile(*configFile)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return nil, err
		}
		cfg = loadedCfg
		logger.Info("Completed loading of configuration file", "path", *configFile)
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Fprintf(os.Stderr, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

// createServices builds every service in initialization order: the monitor
// first, then the api server and the services registering endpoints on it,
// then the exporters.
func createServices(logger *slog.Logger, cfg *config.Config) ([]service.Service, error) {
	logger.Debug("Creating all services")

	topo, err := topology.Load(cfg.Topology.Source, cfg.Host.ProcFS)
	if err != nil {
		return nil, fmt.Errorf("failed to discover cpu topology: %w", err)
	}

	pm, err := createMonitor(logger, cfg, topo)
	if err != nil {
		return nil, err
	}

	apiServer := server.NewAPIServer(
		server.WithLogger(logger),
		server.WithListen(cfg.Web.ListenAddresses, cfg.Web.Config),
	)

	services := []service.Service{pm, apiServer}

	if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
		services = append(services, server.NewPprof(apiServer))
	}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		promExporter, err := createPrometheusExporter(logger, cfg, apiServer, pm)
		if err != nil {
			return nil, err
		}
		services = append(services, promExporter)
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		services = append(services, stdout.NewExporter(pm,
			stdout.WithLogger(logger),
			stdout.WithTop(cfg.Exporter.Stdout.Top),
		))
	}

	if ptr.Deref(cfg.Exporter.CSV.Enabled, false) {
		services = append(services, csv.NewExporter(pm,
			csv.WithLogger(logger),
			csv.WithPath(cfg.Exporter.CSV.Path),
		))
	}

	services = append(services, server.NewHealthProbe(apiServer, []service.Service{pm}, logger))
	return services, nil
}

func createMonitor(logger *slog.Logger, cfg *config.Config, topo *topology.Topology) (*monitor.Monitor, error) {
	timeslice := cfg.Monitor.Timeslice
	if cfg.Monitor.FixedTimesliceEnabled() {
		ts, err := monitor.FixedTimeslice(float64(cfg.Monitor.Frequency))
		if err != nil {
			return nil, err
		}
		timeslice = ts
	}

	energy, err := createEnergySampler(logger, cfg, topo)
	if err != nil {
		return nil, err
	}

	resolver, err := resource.NewCgroupResolver(
		resource.WithLogger(logger),
		resource.WithProcFSRoots(cfg.Host.HostProcFS, cfg.Host.ProcFS),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cgroup resolver: %w", err)
	}

	return monitor.NewMonitor(topo, createCaptureSource(logger, cfg),
		monitor.WithLogger(logger),
		monitor.WithEnergySource(energy),
		monitor.WithCgroupResolver(resolver),
		monitor.WithWindow(monitor.WindowMode(cfg.Monitor.Window), timeslice),
		monitor.WithStaleness(cfg.Monitor.Staleness),
		monitor.WithAttributionDomain(cfg.Monitor.AttributionDomain),
		monitor.WithThreadRecords(ptr.Deref(cfg.Exporter.CSV.Threads, false)),
	)
}

func createEnergySampler(logger *slog.Logger, cfg *config.Config, topo *topology.Topology) (*device.EnergySampler, error) {
	var (
		meter device.CPUPowerMeter
		err   error
	)
	if ptr.Deref(cfg.Dev.FakeCpuMeter.Enabled, false) {
		meter, err = device.NewFakeCPUMeter(topo.SocketCount(), cfg.Dev.FakeCpuMeter.Zones,
			device.WithFakeLogger(logger))
	} else {
		meter, err = device.NewCPUPowerMeter(cfg.Host.SysFS,
			device.WithRaplLogger(logger),
			device.WithZoneFilter(cfg.Rapl.Zones))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU power meter: %w", err)
	}
	return device.NewEnergySampler(meter, device.WithSamplerLogger(logger)), nil
}

func createCaptureSource(logger *slog.Logger, cfg *config.Config) capture.Source {
	if cfg.FakeCaptureEnabled() {
		return capture.NewMemorySource(
			capture.WithMemoryLogger(logger),
			capture.WithSyntheticLoad(),
		)
	}
	return capture.NewBPFSource(cfg.Capture.Object,
		capture.WithBPFLogger(logger),
		capture.WithPinPath(cfg.Capture.PinPath),
	)
}

func createPrometheusExporter(logger *slog.Logger, cfg *config.Config, apiServer *server.APIServer, pm prometheus.Monitor) (*prometheus.Exporter, error) {
	collectors, err := prometheus.CreateCollectors(pm,
		prometheus.WithLogger(logger),
		prometheus.WithSysFSPath(cfg.Host.SysFS),
		prometheus.WithMetricsLevel(cfg.Exporter.Prometheus.MetricsLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus collectors: %w", err)
	}

	return prometheus.NewExporter(pm, apiServer,
		prometheus.WithLogger(logger),
		prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
		prometheus.WithCollectors(collectors),
	), nil
}
