package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/teamcutter/patchr/internal/domain"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.journal.History(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("%s No transfers yet\n", dim("○"))
				return nil
			}

			for _, rec := range records {
				line := fmt.Sprintf("%s %s %s", status(rec.Status), rec.RemoteKey, dim(shortID(rec.BatchID)))
				switch rec.Status {
				case domain.StatusDone:
					line += fmt.Sprintf("  %s  %s", humanize.Bytes(uint64(rec.Bytes)), dim(humanize.Time(rec.FinishedAt)))
				case domain.StatusFailed:
					line += "  " + red(rec.Error)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of transfers to show (0 for all)")
	return cmd
}

func status(s string) string {
	switch s {
	case domain.StatusDone:
		return green("✓")
	case domain.StatusFailed:
		return red("✗")
	case domain.StatusInterrupted:
		return yellow("!")
	default:
		return dim("○")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
