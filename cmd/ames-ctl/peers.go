package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ames/pkg/persist"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List peers known to the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := loadSnapshots(dbPath)
		if err != nil {
			return err
		}
		printSnapshots(rows)
		return nil
	},
}

func loadSnapshots(path string) ([]persist.Snapshot, error) {
	store, err := persist.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer store.Close()

	var rows []persist.Snapshot
	if err := store.LoadAll(func(s persist.Snapshot) error {
		rows = append(rows, s)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ship.String() < rows[j].Ship.String() })
	return rows, nil
}

func printSnapshots(rows []persist.Snapshot) {
	if len(rows) == 0 {
		fmt.Println("no peers recorded")
		return
	}
	fmt.Printf("%-14s %-7s %-6s %-6s %-14s %s\n", "SHIP", "KNOWN", "LIFE", "RIFT", "SPONSOR", "LAST CONTACT")
	for _, s := range rows {
		sponsor := "-"
		if s.HasSponsor {
			sponsor = s.Sponsor.String()
		}
		last := "never"
		if !s.LastContact.IsZero() {
			last = s.LastContact.Format(time.RFC3339)
		}
		fmt.Printf("%-14s %-7v %-6d %-6d %-14s %s\n", s.Ship.String(), s.Known, s.Life, s.Rift, sponsor, last)
	}
}
