package cmd

import (
	"fmt"

	"portage/internal/record"

	"github.com/spf13/cobra"
)

var queueStatus string

var queueCmd = &cobra.Command{
	Use:     "queue [range]",
	Aliases: []string{"list"},
	Short:   "List jobs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := record.New()
		req.Set("command", "q")
		if len(args) == 1 {
			req.Set("range", args[0])
		}
		if queueStatus != "" {
			req.Set("status", queueStatus)
		}

		res, err := roundTrip(req, func(rec *record.Record) {
			fmt.Print(rec.String())
		})
		if err != nil {
			return err
		}

		if record.IsError(res) {
			return fmt.Errorf("query failed: %s", res.Get("message"))
		}

		fmt.Printf("%s job(s) found\n", res.Get("count"))
		if res.Has("not_found") {
			fmt.Printf("not found: %s\n", res.Get("not_found"))
		}

		return nil
	},
}

func init() {
	queueCmd.Flags().StringVar(&queueStatus, "status", "", "filter: pending, done, all or a status name")
	rootCmd.AddCommand(queueCmd)
}
