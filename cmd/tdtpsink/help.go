package main

import (
	"fmt"

	"github.com/ruslano69/tdtp-sink/pkg/dialect"
)

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("tdtpsink version %s\n", version)
	fmt.Println("Relational sink for Kafka and RabbitMQ streams")
}

// PrintHelp prints usage information
func PrintHelp() {
	fmt.Println("tdtpsink - writes message batches into relational tables")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  tdtpsink --config sink.yaml [options]")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println("    --config <file>            Configuration file (default: sink.yaml)")
	fmt.Println("    --metrics-addr <addr>      Metrics/health listen address override")
	fmt.Println("    --log-level <level>        debug, info, warn, error (default: info)")
	fmt.Println("    --log-json                 JSON logs")
	fmt.Println("    --dialects                 List registered dialects")
	fmt.Println("    --create-config <dialect>  Print config template")
	fmt.Println("    --version                  Show version")
	fmt.Println()

	fmt.Println("ENDPOINTS (when metrics.addr is set):")
	fmt.Println("    /healthz  /readyz  /stats  /metrics")
}

// PrintDialects lists dialects registered by the blank imports in main.go
func PrintDialects() {
	for _, name := range dialect.RegisteredNames() {
		fmt.Println(name)
	}
}
