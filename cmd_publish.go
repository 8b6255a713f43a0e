package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/source"
)

var publishCmd = &cobra.Command{
	Use:   "publish <gate>",
	Short: "Publish a decision frame to the gateway's NATS subject",
	Long: `Publishes one decision frame for a gate. The frame is built from flags, or read
from --file (use - for stdin). Frames are validated before they are sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gate := args[0]
		file, _ := cmd.Flags().GetString("file")

		var e decision.Event
		if file != "" {
			data, err := readFrame(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if e, err = decision.Parse(data); err != nil {
				return err
			}
		} else {
			var err error
			if e, err = eventFromFlags(cmd, gate, time.Now()); err != nil {
				return err
			}
		}

		pub, err := source.NewNATSPublisher(cfg.Serve.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		subject := source.Subject(cfg.Serve.Subject, gate)
		if err := pub.Publish(ctx, subject, e); err != nil {
			return err
		}
		logger.Info("publish: frame sent", "subject", subject, "type", e.Type)
		fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", e.Type, subject)
		return nil
	},
}

func init() {
	f := publishCmd.Flags()
	f.String("file", "", "read a raw frame from file (- for stdin)")
	f.String("type", string(decision.TypeDecisionUpdate), "message type")
	f.String("plate", "", "license plate")
	f.String("truck", "", "truck id")
	f.String("un", "", "UN number")
	f.String("kemler", "", "Kemler code")
	f.String("decision", "", "accepted, rejected or manual_review")
	f.StringSlice("alert", nil, "alert text (repeatable)")
	f.String("reason", "", "decision reason")
	f.String("plate-crop", "", "license plate crop URL")
	f.String("hazard-crop", "", "hazard placard crop URL")
}

func readFrame(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func eventFromFlags(cmd *cobra.Command, gate string, now time.Time) (decision.Event, error) {
	f := cmd.Flags()
	str := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}
	outcome, err := decision.ParseOutcome(str("decision"))
	if err != nil {
		return decision.Event{}, err
	}
	typ := decision.MessageType(str("type"))
	if typ == "" {
		return decision.Event{}, fmt.Errorf("--type must not be empty")
	}
	alerts, _ := f.GetStringSlice("alert")
	return decision.Event{
		Type:      typ,
		Timestamp: now.UTC(),
		Payload: decision.Payload{
			GateID:         gate,
			TruckID:        str("truck"),
			LicensePlate:   str("plate"),
			LicenseCropURL: str("plate-crop"),
			HazardCropURL:  str("hazard-crop"),
			UNNumber:       str("un"),
			KemlerCode:     str("kemler"),
			Decision:       outcome,
			Alerts:         alerts,
			Reason:         str("reason"),
		},
	}, nil
}
