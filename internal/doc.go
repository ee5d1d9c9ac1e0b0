// Package itemhistory answers temporal questions about home automation
// items from their persisted history.
//
// # Architecture
//
// The service is structured into several key packages:
//   - units, state, item: quantities, item states and the live item registry
//   - database: pluggable persistence services (memory, TimescaleDB, SQLite)
//   - persistence: the query engine (extrema, time weighted statistics,
//     Riemann sums, deltas and change points)
//   - grpc, api: gRPC and REST front ends over the engine
//   - ingest: MQTT and Kafka state sources, the recorder and the history importer
//   - config, scheduler: configuration loading and cron jobs
//
// Key Features
//
//   - Boundary aware windows:
//     Every window is stitched with the value known at its start and with
//     the item's live state, so queries are defined on sparse history.
//
//   - Forecasts:
//     Windows reaching into the future read persisted forecast states and
//     use the live state for the gap around now.
//
//   - Units:
//     Quantities are converted into the item's unit before aggregation;
//     integrals and variances carry derived units.
//
// Example Usage
//
//	client := server.NewClient(conn)
//	resp, err := client.Query(ctx, server.QueryParams{
//	    Item:     "Kitchen_Temperature",
//	    Metric:   "average",
//	    Selector: "since",
//	    Start:    time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
//	})
//
// For more information about specific packages, see their respective
// documentation.
package itemhistory
