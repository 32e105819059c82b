package cmd

import (
	"fmt"

	"portage/internal/record"

	"github.com/spf13/cobra"
)

var infoType string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show transfer module information",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := record.New()
		req.Set("command", "info")
		if infoType != "" {
			req.Set("type", infoType)
		}

		res, err := roundTrip(req, func(rec *record.Record) {
			fmt.Print(rec.String())
		})
		if err != nil {
			return err
		}

		if record.IsError(res) {
			return fmt.Errorf("info failed: %s", res.Get("message"))
		}

		return nil
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoType, "type", "", "info type: module or server")
	rootCmd.AddCommand(infoCmd)
}
