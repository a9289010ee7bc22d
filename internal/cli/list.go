package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list [group]",
		Short: "List installed and missing patches and add-ons",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, addOns := catalog.PatchGroups, true
			if len(args) == 1 {
				g, err := catalog.ParseGroup(args[0])
				if err != nil {
					return err
				}
				if g == catalog.AddOns {
					groups = nil
				} else {
					groups, addOns = []catalog.Group{g}, false
				}
			}

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			for _, g := range groups {
				stop := withSpinner(ctx, fmt.Sprintf("Checking %s...", g))
				installed, err := s.mgr.Installed(ctx, g)
				if err != nil {
					stop()
					return err
				}
				missing, err := s.mgr.Missing(ctx, g)
				stop()
				if err != nil {
					return err
				}
				if len(installed)+len(missing) == 0 {
					continue
				}

				fmt.Printf("%s\n", bold(string(g)))
				for _, a := range installed {
					fmt.Printf("  %s %s %s\n", green("✓"), a.Name, describe(a))
				}
				for _, a := range missing {
					fmt.Printf("  %s %s %s\n", yellow("↓"), a.Name, describe(a))
				}
				fmt.Println()
			}

			if !addOns {
				return nil
			}
			list := s.mgr.AddOns()
			if len(list) == 0 {
				return nil
			}
			fmt.Printf("%s\n", bold(string(catalog.AddOns)))
			for _, a := range list {
				fmt.Printf("  %s %s %s\n", mark(a.Present), a.Name, describe(a.Artifact))
			}
			return nil
		},
	}
}

func describe(a domain.Artifact) string {
	if a.Description == "" {
		return ""
	}
	return dim(a.Description)
}
