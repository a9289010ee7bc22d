package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/api"
)

func newReserveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve",
		Short: "Create placeholders for reserved patches",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.dispatcher.Dispatch(cmd.Context(), api.Reserve{})
			if err != nil {
				return err
			}
			created := res.(api.ReserveResult).Created
			if len(created) == 0 {
				fmt.Printf("%s Reserved patches already in place\n", dim("○"))
				return nil
			}
			for _, name := range created {
				fmt.Printf("%s %s\n", green("✓"), name)
			}
			return nil
		},
	}
}
