package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/MasterOfBinary/malbatch/sample"
)

func newGetCmd(a *app) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "get <dataset> <hash>",
		Short: "Look a sample up by hash and print it as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.datasets().Get(args[0])
			if err != nil {
				return err
			}

			s, err := p.Sample(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if check && !s.Checked() {
				s, err = sample.New(s.Path(),
					sample.WithMD5(s.MD5()),
					sample.WithSHA256(s.SHA256()),
					sample.WithCheck(true))
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify the hash against the file content")
	return cmd
}
