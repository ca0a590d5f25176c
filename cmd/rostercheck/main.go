// Command rostercheck validates a roster state snapshot against the full
// invariant set and reports every violation it finds.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"rostercore/internal/core"
	"rostercore/internal/infra/persistence/memory"
	"rostercore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rostercheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var snapshotPath string
	var verbose bool
	fs.StringVar(&snapshotPath, "snapshot", "", "path to snapshot JSON file")
	fs.BoolVar(&verbose, "v", false, "print entity counts on success")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if snapshotPath == "" {
		fmt.Fprintln(stderr, "rostercheck: -snapshot is required")
		fs.Usage()
		return 2
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		fmt.Fprintf(stderr, "rostercheck: read snapshot: %v\n", err)
		return 2
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		fmt.Fprintf(stderr, "rostercheck: decode snapshot: %v\n", err)
		return 2
	}

	externs := domain.DefaultExterns()
	store := memory.NewStore(core.NewDefaultRulesEngine(externs), externs)
	if err := store.ImportState(context.Background(), snapshot); err != nil {
		var rve domain.RuleViolationError
		if errors.As(err, &rve) {
			printViolations(stdout, rve.Result.Violations)
			return 1
		}
		fmt.Fprintf(stderr, "rostercheck: %v\n", err)
		return 2
	}

	if verbose {
		fmt.Fprintf(stdout, "ok: %d users, %d roster items, %d groups, %d child links, %d memberships, %d admins\n",
			len(snapshot.Users), len(snapshot.RosterItems), len(snapshot.Groups),
			len(snapshot.ChildGroups), len(snapshot.GroupMembers), len(snapshot.Admins))
	} else {
		fmt.Fprintln(stdout, "ok")
	}
	return 0
}

func printViolations(w io.Writer, violations []domain.Violation) {
	sorted := make([]domain.Violation, len(violations))
	copy(sorted, violations)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rule != sorted[j].Rule {
			return sorted[i].Rule < sorted[j].Rule
		}
		return sorted[i].EntityID < sorted[j].EntityID
	})
	for _, v := range sorted {
		fmt.Fprintf(w, "%s [%s] %s %s: %s\n", v.Severity, v.Rule, v.Entity, v.EntityID, v.Message)
	}
	fmt.Fprintf(w, "%d violation(s)\n", len(sorted))
}
