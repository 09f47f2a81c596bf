// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
	Host struct {
		SysFS  string `yaml:"sysfs"`
		ProcFS string `yaml:"procfs"`
		// HostProcFS is the host's procfs mounted into a container. Cgroups
		// are looked up there before ProcFS; a missing mount is skipped.
		HostProcFS string `yaml:"hostProcfs"`
	}

	Topology struct {
		Source string `yaml:"source"` // procfs or ghw
	}

	Monitor struct {
		Window    string        `yaml:"window"`    // dynamic or fixed
		Timeslice time.Duration `yaml:"timeslice"` // initial window, or the window in fixed mode
		// Frequency in Hz overrides Timeslice in fixed mode when positive
		Frequency         int           `yaml:"frequency"`
		Staleness         time.Duration `yaml:"staleness"` // time after which unseen threads are evicted
		AttributionDomain string        `yaml:"attributionDomain"`
	}

	Capture struct {
		Backend string `yaml:"backend"` // bpf or memory
		Object  string `yaml:"object"`  // compiled bpf object
		PinPath string `yaml:"pinPath"` // bpffs directory the maps are pinned to; empty disables pinning
	}

	// Rapl configuration
	Rapl struct {
		Zones []string `yaml:"zones"`
	}

	// Development mode settings; disabled by default
	Dev struct {
		FakeCpuMeter struct {
			Enabled *bool    `yaml:"enabled"`
			Zones   []string `yaml:"zones"`
		} `yaml:"fake-cpu-meter"`
		// FakeCapture replaces the capture backend with synthetic load
		FakeCapture struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"fake-capture"`
	}

	Web struct {
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	// Exporter configuration
	StdoutExporter struct {
		Enabled *bool `yaml:"enabled"`
		// Top limits the container table to the containers drawing the most
		// power; 0 prints all
		Top int `yaml:"top"`
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
		MetricsLevel    Level    `yaml:"metricsLevel"`
	}

	CSVExporter struct {
		Enabled *bool  `yaml:"enabled"`
		Path    string `yaml:"path"`
		Threads *bool  `yaml:"threads"` // include per thread records
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
		CSV        CSVExporter        `yaml:"csv"`
	}

	// Debug configuration
	PprofDebug struct {
		Enabled *bool `yaml:"enabled"`
	}

	Debug struct {
		Pprof PprofDebug `yaml:"pprof"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Host     Host     `yaml:"host"`
		Topology Topology `yaml:"topology"`
		Monitor  Monitor  `yaml:"monitor"`
		Capture  Capture  `yaml:"capture"`
		Rapl     Rapl     `yaml:"rapl"`
		Exporter Exporter `yaml:"exporter"`
		Web      Web      `yaml:"web"`
		Debug    Debug    `yaml:"debug"`
		Dev      Dev      `yaml:"dev"` // WARN: do not expose dev settings as flags
	}
)

// MetricsLevelValue is a custom kingpin.Value that parses metrics levels directly into Level
type MetricsLevelValue struct {
	level *Level
	set   bool
}

// NewMetricsLevelValue creates a new MetricsLevelValue with the given target
func NewMetricsLevelValue(target *Level) *MetricsLevelValue {
	return &MetricsLevelValue{level: target}
}

// Set implements kingpin.Value interface. The first value replaces the
// default, later values accumulate.
func (m *MetricsLevelValue) Set(value string) error {
	level, err := ParseLevel([]string{value})
	if err != nil {
		return err
	}

	if !m.set {
		*m.level = 0
		m.set = true
	}
	*m.level |= level
	return nil
}

// String implements kingpin.Value interface
func (m *MetricsLevelValue) String() string {
	return m.level.String()
}

// IsCumulative implements kingpin.Value interface to support multiple values
func (m *MetricsLevelValue) IsCumulative() bool {
	return true
}

type SkipValidation int

const (
	SkipHostValidation SkipValidation = 1
)

const (
	DefaultListenAddress = ":28282"

	WindowDynamic = "dynamic"
	WindowFixed   = "fixed"

	CaptureBPF    = "bpf"
	CaptureMemory = "memory"

	TopologyProcFS = "procfs"
	TopologyGHW    = "ghw"
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	HostSysFSFlag  = "host.sysfs"
	HostProcFSFlag = "host.procfs"

	TopologySourceFlag = "topology.source"

	MonitorWindowFlag    = "monitor.window"
	MonitorTimesliceFlag = "monitor.timeslice"
	MonitorFrequencyFlag = "monitor.frequency"
	MonitorStalenessFlag = "monitor.staleness"
	MonitorDomainFlag    = "monitor.attribution-domain"

	CaptureBackendFlag = "capture.backend"
	CaptureObjectFlag  = "capture.object"
	CapturePinPathFlag = "capture.pin-path"

	// RAPL
	RaplZones = "rapl.zones" // not a flag

	pprofEnabledFlag = "debug.pprof"

	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	// Exporters
	ExporterStdoutEnabledFlag = "exporter.stdout"
	ExporterStdoutTopFlag     = "exporter.stdout.top"

	ExporterPrometheusEnabledFlag = "exporter.prometheus"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"
	ExporterPrometheusMetricsFlag     = "metrics"

	ExporterCSVEnabledFlag = "exporter.csv"
	ExporterCSVPathFlag    = "exporter.csv.path"
	ExporterCSVThreadsFlag = "exporter.csv.threads"

// WARN:  dev settings shouldn't be exposed as flags as flags are intended for end users
)

var attributionDomains = []string{"package", "core", "dram"}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Host: Host{
			SysFS:      "/sys",
			ProcFS:     "/proc",
			HostProcFS: "/host/proc",
		},
		Topology: Topology{
			Source: TopologyProcFS,
		},
		Monitor: Monitor{
			Window:            WindowDynamic,
			Timeslice:         time.Second,
			Staleness:         8 * time.Second,
			AttributionDomain: "core",
		},
		Capture: Capture{
			Backend: CaptureBPF,
			Object:  "/usr/lib/deepmon/deepmon.bpf.o",
		},
		Rapl: Rapl{
			Zones: []string{},
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled: ptr.To(false),
				Top:     10,
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(true),
				DebugCollectors: []string{"go"},
				MetricsLevel:    MetricsLevelAll,
			},
			CSV: CSVExporter{
				Enabled: ptr.To(false),
				Path:    "deepmon.csv",
				Threads: ptr.To(false),
			},
		},
		Debug: Debug{
			Pprof: PprofDebug{
				Enabled: ptr.To(false),
			},
		},
		Web: Web{
			ListenAddresses: []string{DefaultListenAddress},
		},
	}

	cfg.Dev.FakeCpuMeter.Enabled = ptr.To(false)
	cfg.Dev.FakeCapture.Enabled = ptr.To(false)
	return cfg
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (cfg *Config, errRet error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil && errRet == nil {
			errRet = err
		}
	}()

	return Load(file)
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")
	// host
	hostSysFS := app.Flag(HostSysFSFlag, "Host sysfs path").Default("/sys").ExistingDir()
	hostProcFS := app.Flag(HostProcFSFlag, "Host procfs path").Default("/proc").ExistingDir()

	topologySource := app.Flag(TopologySourceFlag, "CPU topology source: procfs or ghw").Default(TopologyProcFS).Enum(TopologyProcFS, TopologyGHW)

	// monitor
	monitorWindow := app.Flag(MonitorWindowFlag, "Window mode: dynamic adapts to the context switch rate, fixed keeps the timeslice").
		Default(WindowDynamic).Enum(WindowDynamic, WindowFixed)
	monitorTimeslice := app.Flag(MonitorTimesliceFlag, "Initial sampling window, or the window in fixed mode").Default("1s").Duration()
	monitorFrequency := app.Flag(MonitorFrequencyFlag, "Sampling frequency in Hz for the fixed window mode; overrides the timeslice").Default("0").Int()
	monitorStaleness := app.Flag(MonitorStalenessFlag, "Time after which threads that were not sampled are evicted").Default("8s").Duration()
	monitorDomain := app.Flag(MonitorDomainFlag, "RAPL domain apportioned to threads: package, core or dram").Default("core").Enum(attributionDomains...)

	// capture
	captureBackend := app.Flag(CaptureBackendFlag, "Capture backend: bpf or memory").Default(CaptureBPF).Enum(CaptureBPF, CaptureMemory)
	captureObject := app.Flag(CaptureObjectFlag, "Path of the compiled bpf object").Default("/usr/lib/deepmon/deepmon.bpf.o").String()
	capturePinPath := app.Flag(CapturePinPathFlag, "bpffs directory to pin the capture maps to").Default("").String()

	enablePprof := app.Flag(pprofEnabledFlag, "Enable pprof debug endpoints").Default("false").Bool()
	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(DefaultListenAddress).Strings()

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Enable stdout exporter").Default("false").Bool()
	stdoutTop := app.Flag(ExporterStdoutTopFlag, "Number of containers printed by the stdout exporter; 0 prints all").Default("10").Int()

	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("true").Bool()

	metricsLevel := MetricsLevelAll
	app.Flag(ExporterPrometheusMetricsFlag, "Metrics levels to export (node,thread,container)").SetValue(NewMetricsLevelValue(&metricsLevel))

	csvExporterEnabled := app.Flag(ExporterCSVEnabledFlag, "Enable CSV trace exporter").Default("false").Bool()
	csvPath := app.Flag(ExporterCSVPathFlag, "CSV trace file; - writes to stdout").Default("deepmon.csv").String()
	csvThreads := app.Flag(ExporterCSVThreadsFlag, "Include per thread records in the CSV trace").Default("false").Bool()

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[HostSysFSFlag] {
			cfg.Host.SysFS = *hostSysFS
		}

		if flagsSet[HostProcFSFlag] {
			cfg.Host.ProcFS = *hostProcFS
		}

		if flagsSet[TopologySourceFlag] {
			cfg.Topology.Source = *topologySource
		}

		// monitor settings
		if flagsSet[MonitorWindowFlag] {
			cfg.Monitor.Window = *monitorWindow
		}
		if flagsSet[MonitorTimesliceFlag] {
			cfg.Monitor.Timeslice = *monitorTimeslice
		}
		if flagsSet[MonitorFrequencyFlag] {
			cfg.Monitor.Frequency = *monitorFrequency
		}
		if flagsSet[MonitorStalenessFlag] {
			cfg.Monitor.Staleness = *monitorStaleness
		}
		if flagsSet[MonitorDomainFlag] {
			cfg.Monitor.AttributionDomain = *monitorDomain
		}

		// capture settings
		if flagsSet[CaptureBackendFlag] {
			cfg.Capture.Backend = *captureBackend
		}
		if flagsSet[CaptureObjectFlag] {
			cfg.Capture.Object = *captureObject
		}
		if flagsSet[CapturePinPathFlag] {
			cfg.Capture.PinPath = *capturePinPath
		}

		if flagsSet[pprofEnabledFlag] {
			cfg.Debug.Pprof.Enabled = enablePprof
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}
		if flagsSet[ExporterStdoutTopFlag] {
			cfg.Exporter.Stdout.Top = *stdoutTop
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		if flagsSet[ExporterPrometheusMetricsFlag] {
			cfg.Exporter.Prometheus.MetricsLevel = metricsLevel
		}

		if flagsSet[ExporterCSVEnabledFlag] {
			cfg.Exporter.CSV.Enabled = csvExporterEnabled
		}
		if flagsSet[ExporterCSVPathFlag] {
			cfg.Exporter.CSV.Path = *csvPath
		}
		if flagsSet[ExporterCSVThreadsFlag] {
			cfg.Exporter.CSV.Threads = csvThreads
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Host.SysFS = strings.TrimSpace(c.Host.SysFS)
	c.Host.ProcFS = strings.TrimSpace(c.Host.ProcFS)
	c.Host.HostProcFS = strings.TrimSpace(c.Host.HostProcFS)
	c.Topology.Source = strings.ToLower(strings.TrimSpace(c.Topology.Source))
	c.Monitor.Window = strings.ToLower(strings.TrimSpace(c.Monitor.Window))
	c.Monitor.AttributionDomain = strings.ToLower(strings.TrimSpace(c.Monitor.AttributionDomain))
	c.Capture.Backend = strings.ToLower(strings.TrimSpace(c.Capture.Backend))
	c.Capture.Object = strings.TrimSpace(c.Capture.Object)
	c.Capture.PinPath = strings.TrimSpace(c.Capture.PinPath)
	c.Exporter.CSV.Path = strings.TrimSpace(c.Exporter.CSV.Path)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Rapl.Zones {
		c.Rapl.Zones[i] = strings.TrimSpace(c.Rapl.Zones[i])
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}
}

// Validate checks for configuration errors
func (c *Config) Validate(skips ...SkipValidation) error {
	validationSkipped := make(map[SkipValidation]bool, len(skips))
	for _, v := range skips {
		validationSkipped[v] = true
	}
	var errs []string
	{ // log level
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}

	{ // Validate host settings
		if _, skip := validationSkipped[SkipHostValidation]; !skip {
			if err := canReadDir(c.Host.SysFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid sysfs path: %s: %s ", c.Host.SysFS, err.Error()))
			}
			if err := canReadDir(c.Host.ProcFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid procfs path: %s: %s ", c.Host.ProcFS, err.Error()))
			}
		}
	}
	{ // Topology
		if c.Topology.Source != TopologyProcFS && c.Topology.Source != TopologyGHW {
			errs = append(errs, fmt.Sprintf("invalid topology source: %q", c.Topology.Source))
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	{ // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}
	{ // Monitor
		switch c.Monitor.Window {
		case WindowDynamic, WindowFixed:
		default:
			errs = append(errs, fmt.Sprintf("invalid monitor window: %q", c.Monitor.Window))
		}
		if c.Monitor.Timeslice <= 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor timeslice: %s must be positive", c.Monitor.Timeslice))
		}
		if c.Monitor.Frequency < 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor frequency: %d can't be negative", c.Monitor.Frequency))
		}
		if c.Monitor.Staleness <= 0 {
			errs = append(errs, fmt.Sprintf("invalid monitor staleness: %s must be positive", c.Monitor.Staleness))
		}
		if !slices.Contains(attributionDomains, c.Monitor.AttributionDomain) {
			errs = append(errs, fmt.Sprintf("invalid attribution domain: %q", c.Monitor.AttributionDomain))
		}
	}
	{ // Capture
		switch c.Capture.Backend {
		case CaptureBPF:
			if c.Capture.Object == "" && !ptr.Deref(c.Dev.FakeCapture.Enabled, false) {
				errs = append(errs, fmt.Sprintf("%s not supplied but %s is %s", CaptureObjectFlag, CaptureBackendFlag, CaptureBPF))
			}
		case CaptureMemory:
		default:
			errs = append(errs, fmt.Sprintf("invalid capture backend: %q", c.Capture.Backend))
		}
	}
	{ // Stdout exporter
		if c.Exporter.Stdout.Top < 0 {
			errs = append(errs, fmt.Sprintf("invalid %s: %d, must not be negative", ExporterStdoutTopFlag, c.Exporter.Stdout.Top))
		}
	}
	{ // CSV exporter
		if ptr.Deref(c.Exporter.CSV.Enabled, false) && c.Exporter.CSV.Path == "" {
			errs = append(errs, fmt.Sprintf("%s not supplied but %s set to true", ExporterCSVPathFlag, ExporterCSVEnabledFlag))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

// FixedTimesliceEnabled reports whether the window is fixed at a frequency
// rather than at Timeslice
func (m Monitor) FixedTimesliceEnabled() bool {
	return m.Window == WindowFixed && m.Frequency > 0
}

// FakeCaptureEnabled reports whether synthetic load replaces the kernel
// capture
func (c *Config) FakeCaptureEnabled() bool {
	return ptr.Deref(c.Dev.FakeCapture.Enabled, false) || c.Capture.Backend == CaptureMemory
}

func canReadDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()

	_, err = f.ReadDir(1)
	return err
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	return err
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// host can be empty for listening on all interfaces
	return validatePort(port)
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric, got %s", port)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{HostSysFSFlag, c.Host.SysFS},
		{HostProcFSFlag, c.Host.ProcFS},
		{TopologySourceFlag, c.Topology.Source},
		{MonitorWindowFlag, c.Monitor.Window},
		{MonitorTimesliceFlag, c.Monitor.Timeslice.String()},
		{MonitorFrequencyFlag, strconv.Itoa(c.Monitor.Frequency)},
		{MonitorStalenessFlag, c.Monitor.Staleness.String()},
		{MonitorDomainFlag, c.Monitor.AttributionDomain},
		{CaptureBackendFlag, c.Capture.Backend},
		{CaptureObjectFlag, c.Capture.Object},
		{CapturePinPathFlag, c.Capture.PinPath},
		{RaplZones, strings.Join(c.Rapl.Zones, ", ")},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterStdoutTopFlag, strconv.Itoa(c.Exporter.Stdout.Top)},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{ExporterPrometheusMetricsFlag, c.Exporter.Prometheus.MetricsLevel.String()},
		{ExporterCSVEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.CSV.Enabled, false))},
		{ExporterCSVPathFlag, c.Exporter.CSV.Path},
		{pprofEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Debug.Pprof.Enabled, false))},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}
