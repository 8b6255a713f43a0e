package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history [gate]",
	Short: "Show journaled decisions",
	Long:  "Lists recent journaled decisions for a gate, newest first. Without a gate, summarises every gate.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		now := time.Now()
		if len(args) == 0 {
			gates, err := store.Gates()
			if err != nil {
				return err
			}
			return printGates(out, gates, now)
		}

		recs, err := store.RecentDecisions(args[0], limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printRecordsJSON(out, recs)
		}
		return printRecords(out, recs, now)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of decisions")
	historyCmd.Flags().Bool("json", false, "print raw frames as JSON lines")
}

func printGates(w io.Writer, gates []db.GateCount, now time.Time) error {
	if len(gates) == 0 {
		fmt.Fprintln(w, "journal is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GATE\tDECISIONS\tLAST")
	for _, g := range gates {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Gate, humanize.Comma(int64(g.Count)), humanize.RelTime(g.Last, now, "ago", "from now"))
	}
	return tw.Flush()
}

func printRecords(w io.Writer, recs []db.Record, now time.Time) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no decisions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTYPE\tPLATE\tHAZARD\tDECISION")
	for _, r := range recs {
		hazard := strings.TrimSpace(strings.Join([]string{r.UNNumber, r.KemlerCode}, " "))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(r.At, now, "ago", "from now"), r.Type, dash(r.Plate), dash(hazard), r.Decision.Label())
	}
	return tw.Flush()
}

func printRecordsJSON(w io.Writer, recs []db.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(json.RawMessage(r.Frame)); err != nil {
			return err
		}
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
