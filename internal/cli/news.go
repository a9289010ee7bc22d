package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNewsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Print the latest news",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			news, err := s.mgr.LatestNews(cmd.Context())
			if err != nil {
				return err
			}
			if news == "" {
				fmt.Printf("%s No news\n", dim("○"))
				return nil
			}
			fmt.Println(news)
			return nil
		},
	}
}
