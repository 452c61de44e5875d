package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that every enabled supplier and backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.Service.Ping(cmd.Context())
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		if perr := status[name]; perr != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%-10s DOWN  %v\n", name, perr)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-10s OK\n", name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(names))
	}
	return nil
}
