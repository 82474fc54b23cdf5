package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jonathan/course-crawler/internal/observability"
	"github.com/jonathan/course-crawler/internal/recovery"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <file>",
	Short: "Run the recovery pipeline on a local file",
	Long:  "Runs the recovery pipeline on a local payload, such as an archived raw_{code}_failed.txt file, and prints the recovered document or the failure reason.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecover,
}

var (
	recoverOut   string
	recoverQuiet bool
)

func init() {
	recoverCmd.Flags().StringVarP(&recoverOut, "out", "o", "", "Write the recovered document to this file instead of stdout")
	recoverCmd.Flags().BoolVarP(&recoverQuiet, "quiet", "q", false, "Do not print the recovery summary")

	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	return recoverFile(cmd.OutOrStdout(), args[0], recoverOut, recoverQuiet)
}

func recoverFile(out io.Writer, path, outPath string, quiet bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}

	doc, err := recovery.Recover(string(raw))
	if !quiet {
		observability.NewPrinter(out).PrintRecovery(doc, err)
	}
	if err != nil {
		return err
	}

	pretty, err := doc.Indent()
	if err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, pretty, 0644); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Document written to: %s\n", outPath)
		return nil
	}

	_, _ = fmt.Fprintf(out, "%s\n", pretty)
	return nil
}
