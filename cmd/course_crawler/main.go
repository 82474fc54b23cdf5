// Package main provides the entry point for the course_crawler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "course_crawler",
	Short: "Course listing crawler",
	Long:  "course_crawler fetches the course listing of every career, recovers the JSON payloads, and stores one document per career.",
	// Errors are reported once by main
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
