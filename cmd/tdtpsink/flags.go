package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	Config       *string
	MetricsAddr  *string // Overrides metrics.addr from config
	LogLevel     *string
	LogJSON      *bool
	ListDialects *bool
	CreateConfig *string // Dialect name for the config template
	Version      *bool
	Help         *bool
}

// ParseFlags defines and parses all command-line flags
func ParseFlags() *Flags {
	f := &Flags{}

	f.Config = flag.String("config", "sink.yaml", "Configuration file path")
	f.MetricsAddr = flag.String("metrics-addr", "", "Metrics/health listen address override (e.g. :9102)")
	f.LogLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	f.LogJSON = flag.Bool("log-json", false, "Write JSON logs instead of console output")
	f.ListDialects = flag.Bool("dialects", false, "List registered database dialects")
	f.CreateConfig = flag.String("create-config", "", "Print config template for dialect (postgres, timescale, mysql, mssql, sqlite)")
	f.Version = flag.Bool("version", false, "Show version")
	f.Help = flag.Bool("help", false, "Show help")

	flag.Parse()
	return f
}
