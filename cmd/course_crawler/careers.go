package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jonathan/course-crawler/internal/types"
	"github.com/spf13/cobra"
)

var careersCmd = &cobra.Command{
	Use:   "careers",
	Short: "List career codes and labels in crawl order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printCareers(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(careersCmd)
}

func printCareers(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tLABEL")
	for _, career := range types.AllCareers() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", career.Code(), career.Label())
	}
	return w.Flush()
}
