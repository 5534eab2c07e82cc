package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var approveSink string

var approveCmd = &cobra.Command{
	Use:   "approve <run-id>",
	Short: "Write a reviewed run's record to a table",
	Long:  "Pushes the record of a run awaiting review to the store, Notion or Salesforce. Re-approving updates the record written last time.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("approve:" + approveSink); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		approver, err := initApprover(st, approveSink)
		if err != nil {
			return err
		}

		push, err := approver.Approve(ctx, args[0], approveSink)
		if err != nil {
			return eris.Wrapf(err, "approve run %s", args[0])
		}

		zap.L().Info("run approved",
			zap.String("run_id", args[0]),
			zap.String("sink", push.Sink),
			zap.String("external_id", push.ExternalID),
		)
		_, _ = fmt.Fprintf(os.Stdout, "Approved %s: %s/%s %s\n", truncateID(args[0]), push.Sink, push.Table, push.ExternalID)
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveSink, "sink", "store", "destination (store, notion, salesforce)")
	rootCmd.AddCommand(approveCmd)
}
