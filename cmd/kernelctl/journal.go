package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	kernel "github.com/corolib/taskkernel"
)

var journalPath string

func init() {
	journalCmd.Flags().StringVar(&journalPath, "path", "kernel-journal.db", "bbolt journal file to inspect")
	rootCmd.AddCommand(journalCmd)
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Run the fanout scenario with journaling enabled and print its entries",
	RunE:  runJournal,
}

func runJournal(cmd *cobra.Command, args []string) error {
	fileCfg, err := kernel.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := append(fileCfg.Options(), kernel.WithJournal(journalPath), kernel.WithLogger(kernel.DefaultLogger()))

	k, err := kernel.New(opts...)
	if err != nil {
		return fmt.Errorf("new kernel: %w", err)
	}

	if _, err := k.Run(fanoutScenario); err != nil {
		return fmt.Errorf("run fanout scenario: %w", err)
	}

	entries, err := k.JournalEntries()
	if err != nil {
		return err
	}

	heading(fmt.Sprintf("%s task(s) journaled", humanCount(uint64(len(entries)))))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFINISHED\tERROR")
	for _, e := range entries {
		errStr := "-"
		if e.Error != "" {
			errStr = e.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Name, humanize.Time(e.FinishedAt), errStr)
	}
	return w.Flush()
}
