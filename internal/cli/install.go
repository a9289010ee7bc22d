package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/api"
	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
)

func newInstallCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "install <core|misc|experimental|custom|addon>",
		Short:     "Download what is missing or stale",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"core", "misc", "experimental", "custom", "addon"},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := installRequest(args[0])
			if err != nil {
				return err
			}

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			stop := withSpinner(ctx, fmt.Sprintf("Checking %s...", args[0]))
			res, err := s.dispatcher.Dispatch(ctx, req)
			stop()
			if errors.Is(err, domain.ErrNoRemoteVersion) {
				fmt.Printf("%s No custom content published yet\n", dim("○"))
				return nil
			}
			if err != nil {
				return err
			}

			inst := res.(api.InstallResult).Install
			if inst == nil {
				fmt.Printf("%s %s already up to date\n", green("✓"), bold(args[0]))
				return nil
			}
			return runInstall(ctx, inst, fmt.Sprintf("Installing %s", args[0]))
		},
	}
	return cmd
}

func installRequest(target string) (api.Request, error) {
	switch target {
	case "custom":
		return api.InstallCustom{}, nil
	case "addon":
		return api.InstallAddOn{}, nil
	}
	g, err := catalog.ParseGroup(target)
	if err != nil {
		return nil, err
	}
	return api.InstallGroup{Group: g}, nil
}
