package cmd

import (
	"fmt"

	"portage/internal/record"

	"github.com/spf13/cobra"
)

var rmReason string

var rmCmd = &cobra.Command{
	Use:   "rm [range]",
	Short: "Remove jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := record.New()
		req.Set("command", "rm")
		req.Set("range", args[0])
		if rmReason != "" {
			req.Set("reason", rmReason)
		}

		res, err := roundTrip(req, nil)
		if err != nil {
			return err
		}

		if record.IsError(res) {
			return fmt.Errorf("remove failed: %s", res.Get("message"))
		}

		fmt.Printf("removed: %s\n", args[0])
		return nil
	},
}

func init() {
	rmCmd.Flags().StringVar(&rmReason, "reason", "", "reason for removal")
	rootCmd.AddCommand(rmCmd)
}
