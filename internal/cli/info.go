package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/api"
	"github.com/teamcutter/patchr/internal/catalog"
)

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show what is installed and what is out of date",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			stop := withSpinner(ctx, "Checking client...")
			res, err := s.dispatcher.Dispatch(ctx, api.Info{})
			stop()
			if err != nil {
				return err
			}
			info := res.(api.InfoResult)

			fmt.Printf("%s %s\n", cyan("root:"), info.Root)
			if !info.GameInstalled {
				fmt.Printf("%s No game client found (%s missing)\n", red("✗"), s.cfg.Executable.Name)
				return nil
			}

			version := info.LocalVersion
			if info.RemoteVersion != "" && info.RemoteVersion != info.LocalVersion {
				version += "  " + yellow(fmt.Sprintf("↑ %s", info.RemoteVersion))
			}
			fmt.Printf("%s %s %s\n", cyan("version:"), bold(version), dim("updated "+humanize.Time(info.LastUpdate)))
			fmt.Println()

			for _, g := range catalog.PatchGroups {
				fmt.Printf(" %s %s\n", mark(info.Groups[g]), g)
			}
			if len(info.AddOns) > 0 {
				present := 0
				for _, a := range info.AddOns {
					if a.Present {
						present++
					}
				}
				fmt.Printf(" %s %s %s\n", mark(present == len(info.AddOns)), catalog.AddOns, dim(fmt.Sprintf("%d/%d", present, len(info.AddOns))))
			}
			fmt.Printf(" %s store add-on\n", mark(info.StoreAddOnInstalled))
			if s.cfg.Executable.PatchedMD5 != "" {
				fmt.Printf(" %s %s patched\n", mark(info.ExecutablePatched), s.cfg.Executable.Name)
			}

			if info.News != "" {
				fmt.Printf("\n%s\n%s\n", bold("News"), info.News)
			}
			return nil
		},
	}
}

func mark(ok bool) string {
	if ok {
		return green("✓")
	}
	return yellow("○")
}
