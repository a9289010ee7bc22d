package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/api"
)

func newPatchExeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "patch-exe",
		Short: "Replace the client executable with the patched build",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.dispatcher.Dispatch(cmd.Context(), api.PatchExecutable{}); err != nil {
				return err
			}
			fmt.Printf("%s %s patched %s\n", green("✓"), bold(s.cfg.Executable.Name),
				dim(fmt.Sprintf("(backup: %s.bak)", s.cfg.Executable.Name)))
			return nil
		},
	}
}
