package cmd

import (
	"fmt"

	"portage/internal/record"

	"github.com/spf13/cobra"
)

var (
	submitDapType     string
	submitProxy       string
	submitArguments   string
	submitMaxAttempts int
	submitParallelism int
)

var submitCmd = &cobra.Command{
	Use:   "submit [src_url] [dest_url]",
	Short: "Submit a transfer job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := record.New()
		req.Set("command", "submit")
		req.Set("src_url", args[0])
		req.Set("dest_url", args[1])

		if submitDapType != "" {
			req.Set("dap_type", submitDapType)
		}
		if submitProxy != "" {
			req.Set("x509_proxy", submitProxy)
		}
		if submitArguments != "" {
			req.Set("arguments", submitArguments)
		}
		if submitMaxAttempts > 0 {
			req.SetInt("max_attempts", submitMaxAttempts)
		}
		if submitParallelism > 0 {
			req.SetInt("parallelism", submitParallelism)
		}

		res, err := roundTrip(req, nil)
		if err != nil {
			return err
		}

		if record.IsError(res) {
			return fmt.Errorf("submit failed: %s", res.Get("message"))
		}

		fmt.Printf("job submitted: id=%s\n", res.Get("job_id"))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitDapType, "dap-type", "", "transfer type hint")
	submitCmd.Flags().StringVar(&submitProxy, "x509-proxy", "", "credential reference")
	submitCmd.Flags().StringVar(&submitArguments, "arguments", "", "extra module arguments")
	submitCmd.Flags().IntVar(&submitMaxAttempts, "max-attempts", 0, "per-job retry ceiling")
	submitCmd.Flags().IntVar(&submitParallelism, "parallelism", 0, "requested transfer parallelism")
	rootCmd.AddCommand(submitCmd)
}
