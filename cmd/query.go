package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	server "github.com/tejusbharadwaj/itemhistory/internal/grpc"
)

type queryFlags struct {
	addr      string
	item      string
	metric    string
	since     string
	until     string
	start     string
	end       string
	at        string
	service   string
	riemann   string
	skipEqual bool
	timeout   time.Duration
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "localhost:50051", "gRPC server address")
	cmd.Flags().StringVar(&f.item, "item", "", "item name")
	cmd.Flags().StringVar(&f.since, "since", "", "window start, RFC3339")
	cmd.Flags().StringVar(&f.until, "until", "", "window end, RFC3339")
	cmd.Flags().StringVar(&f.start, "start", "", "between window start, RFC3339")
	cmd.Flags().StringVar(&f.end, "end", "", "between window end, RFC3339")
	cmd.Flags().StringVar(&f.service, "service", "", "persistence service id, default service when empty")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("item")
}

// params maps the flags onto query params: since, until or start/end pick
// the selector and at is the instant of historic and persisted state.
func (f *queryFlags) params() server.QueryParams {
	p := server.QueryParams{
		Item:      f.item,
		Metric:    f.metric,
		Service:   f.service,
		Riemann:   f.riemann,
		SkipEqual: f.skipEqual,
	}
	switch {
	case f.since != "":
		p.Selector, p.Start = "since", f.since
	case f.until != "":
		p.Selector, p.End = "until", f.until
	case f.start != "" || f.end != "":
		p.Selector, p.Start, p.End = "between", f.start, f.end
	}
	if f.at != "" {
		p.Start = f.at
	}
	return p
}

func newQueryCmd() *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a metric against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, f, func(ctx context.Context, c *server.Client) (map[string]interface{}, error) {
				return c.Query(ctx, f.params())
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.metric, "metric", "", "metric name, e.g. average or last_change")
	cmd.Flags().StringVar(&f.at, "at", "", "instant for historic_state and persisted_state, RFC3339")
	cmd.Flags().StringVar(&f.riemann, "riemann", "", "riemann rule: left, right, trapezoidal or midpoint")
	cmd.Flags().BoolVar(&f.skipEqual, "skip-equal", false, "skip states equal to the current one")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove persisted states of an item inside a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, f, func(ctx context.Context, c *server.Client) (map[string]interface{}, error) {
				return c.RemoveStates(ctx, f.params())
			})
		},
	}
	f.register(cmd)
	return cmd
}

func call(cmd *cobra.Command, f *queryFlags, fn func(context.Context, *server.Client) (map[string]interface{}, error)) error {
	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect %s: %w", f.addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	resp, err := fn(ctx, server.NewClient(conn))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
