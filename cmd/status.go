package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(adminURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			InstanceID string         `json:"instance_id"`
			Uptime     string         `json:"uptime"`
			Jobs       map[string]int `json:"jobs"`
			Queued     int            `json:"queued"`
			Modules    int            `json:"modules"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		fmt.Printf("instance: %s\n", result.InstanceID)
		fmt.Printf("uptime:   %s\n", result.Uptime)
		fmt.Printf("queued:   %d\n", result.Queued)
		fmt.Printf("modules:  %d\n", result.Modules)

		if len(result.Jobs) == 0 {
			fmt.Println("no jobs submitted")
			return nil
		}

		for _, status := range []string{"scheduled", "processing", "complete", "failed", "removed"} {
			if n, ok := result.Jobs[status]; ok {
				fmt.Printf("%-12s %d\n", status, n)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
