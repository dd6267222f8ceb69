package cli

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/spf13/cobra"
)

var (
	checkinClass string
	checkinID    string
	checkinTime  string
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Check a participant in by email or phone",
	Long: `Record attendance for a participant, as a QR scan would. Useful when a
participant forgot their code. Repeating a check-in reports the original time.

Examples:
  qrtrackctl checkin --class class1 --id jane@example.com
  qrtrackctl checkin --class class1 --id 555-123-4567 --time 2025-01-01T09:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runCheckin,
}

func init() {
	checkinCmd.Flags().StringVar(&checkinClass, "class", "", "check-in session id")
	checkinCmd.Flags().StringVar(&checkinID, "id", "", "participant email or phone")
	checkinCmd.Flags().StringVar(&checkinTime, "time", "", "check-in time (RFC 3339, default now)")
	_ = checkinCmd.MarkFlagRequired("class")
	_ = checkinCmd.MarkFlagRequired("id")
}

func runCheckin(cmd *cobra.Command, args []string) error {
	req := core.ScanRequest{
		SessionID:  checkinClass,
		Identifier: checkinID,
		RecordedBy: actorID,
	}
	if checkinTime != "" {
		ts, err := time.Parse(time.RFC3339, checkinTime)
		if err != nil {
			return fmt.Errorf("--time: %w", err)
		}
		req.Timestamp = &ts
	}

	res, err := app.Service.Scans.Record(actorContext(cmd.Context()), req)
	if err != nil {
		return fmt.Errorf("check-in: %w", err)
	}

	when := res.CheckInTime.Format(time.RFC3339)
	if res.AlreadyCheckedIn {
		fmt.Fprintf(cmd.OutOrStdout(), "%s was already checked in at %s.\n", res.StudentName, when)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s checked in at %s.\n", res.StudentName, when)
	return nil
}
