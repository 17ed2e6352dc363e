package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list [dataset]",
		Short: "List the datasets, or the samples of one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listDatasets(cmd)
			}
			return a.listSamples(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many samples, 0 for all")
	return cmd
}

func (a *app) listDatasets(cmd *cobra.Command) error {
	registry := a.datasets()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range registry.Names() {
		p, err := registry.Get(name)
		if err != nil {
			return err
		}
		dir, err := p.Dir()
		if err != nil {
			dir = "(" + err.Error() + ")"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, dir)
	}
	return w.Flush()
}

func (a *app) listSamples(cmd *cobra.Command, name string, limit int) error {
	p, err := a.datasets().Get(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	samples, errs := p.Samples(ctx)
	n := 0
	for s := range samples {
		fmt.Fprintf(out, "%s  %s\n", s.Hash(), s.Path())
		n++
		if limit > 0 && n >= limit {
			cancel()
			break
		}
	}
	// The producer stops once ctx is canceled and closes both channels.
	for range samples {
	}
	return <-errs
}
