package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"portage/internal/model"

	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View finished transfer attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s?n=%d", adminURL("/history"), historyN)
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var attempts []model.Attempt
		if err := json.NewDecoder(resp.Body).Decode(&attempts); err != nil {
			return err
		}

		if len(attempts) == 0 {
			fmt.Println("no attempts yet")
			return nil
		}

		for _, a := range attempts {
			mark := "✓"
			if a.Status != string(model.StatusComplete) {
				mark = "✗"
			}

			fmt.Printf("%s [%s] job %d exit=%d %s -> %s (%s)\n",
				mark,
				a.CreatedAt.Format("2006-01-02 15:04:05"),
				a.JobID,
				a.ExitCode,
				a.SrcURL,
				a.DestURL,
				model.PrettyDuration(a.DurationMS),
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of attempts to show")
	rootCmd.AddCommand(historyCmd)
}
