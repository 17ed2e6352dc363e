package main

import (
	"github.com/spf13/cobra"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/executor"
	"github.com/MasterOfBinary/malbatch/transform"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Serve transform requests on standard input and output",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := a.newRedis()
			if client != nil {
				defer client.Close()
			}

			transforms := wrappedTransforms{
				registry: transform.Default(),
				wrap: func(t batch.Transform) (batch.Transform, error) {
					return a.wrap(t, client, nil)
				},
			}

			return executor.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.datasets(), transforms)
		},
	}
}
