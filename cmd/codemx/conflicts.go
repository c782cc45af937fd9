package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

var (
	conflictsStatus string
	conflictsLimit  int
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List mapping conflicts",
	RunE:  runConflicts,
}

var conflictsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize conflicts by status, vocabulary pair, and reason",
	RunE:  runConflictStats,
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
	conflictsCmd.AddCommand(conflictsStatsCmd)

	conflictsCmd.Flags().StringVar(&conflictsStatus, "status", "open", "Filter by status: open, resolved, ignored, or all")
	conflictsCmd.Flags().IntVar(&conflictsLimit, "limit", 50, "Maximum conflicts to show")
}

func runConflicts(cmd *cobra.Command, args []string) error {
	_, _, _, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	status := conflictsStatus
	if status == "all" {
		status = ""
	}
	items, total, err := db.ListConflicts(storage.ConflictFilter{
		Status:  status,
		Page:    1,
		PerPage: conflictsLimit,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d conflict(s) total, showing %d\n", total, len(items))
	for _, c := range items {
		target := c.TargetCode
		if target == "" {
			target = "-"
		}
		fmt.Printf("  #%-6d %-8s %s/%s  %s -> %s  %s\n",
			c.ID, c.Status, c.SourceSystem, c.TargetSystem, c.SourceCode, target, c.Reason)
	}
	return nil
}

func runConflictStats(cmd *cobra.Command, args []string) error {
	_, _, _, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetConflictStats()
	if err != nil {
		return err
	}

	fmt.Printf("Total conflicts: %d\n", stats.Total)
	fmt.Println("By status:")
	printCountMap(stats.ByStatus)
	fmt.Println("By vocabulary pair:")
	printCountMap(stats.ByPair)
	fmt.Println("By reason:")
	printCountMap(stats.ByReason)
	return nil
}

func printCountMap(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %d\n", k, m[k])
	}
}
