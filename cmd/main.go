// Command itemhistory answers temporal questions about home automation items
// from their persisted state history.
//
// The service supports:
//   - Aggregations over since/until/between windows (average, variance,
//     median, Riemann sums, extrema, counts, deltas, ...)
//   - Point lookups (historic state, previous/next state, last/next change)
//   - Memory, TimescaleDB and SQLite persistence services
//   - Live state recording from MQTT and Kafka
//   - gRPC and REST transports with Prometheus metrics
//
// Usage:
//
//	itemhistory serve --config config.yaml
//	itemhistory query --item Kitchen_Temp --metric average --since 2024-05-01T00:00:00Z
//	itemhistory remove --item Kitchen_Temp --until 2023-01-01T00:00:00Z
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "itemhistory",
		Short:        "Query and record the state history of home automation items",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newQueryCmd(), newRemoveCmd())
	return root
}
