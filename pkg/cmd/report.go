package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pseudomuto/snowkeeper/pkg/changeset"
	"github.com/pseudomuto/snowkeeper/pkg/deploy"
	"github.com/pseudomuto/snowkeeper/pkg/scaler"
	"github.com/pseudomuto/snowkeeper/pkg/script"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// printChangeSet lists every bucket of set in execution order, marking the
// scripts that don't apply to environment.
func printChangeSet(w io.Writer, set *changeset.ChangeSet, environment string) {
	if set == nil {
		return
	}

	for _, section := range []struct {
		title   string
		scripts []*script.Script
	}{
		{title: "Versioned scripts", scripts: set.Versioned},
		{title: "Account scripts", scripts: set.Account},
		{title: "Repeatable scripts", scripts: set.Repeatable.Scripts()},
		{title: "Post deployment scripts", scripts: set.PostDeployment},
	} {
		if len(section.scripts) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s (%d)\n", bold(section.title), len(section.scripts))
		for _, s := range section.scripts {
			if s.AppliesTo(environment) {
				fmt.Fprintf(w, "  %s %s\n", green("apply"), s.FullPath)
				continue
			}

			fmt.Fprintf(w, "  %s  %s %s\n", yellow("skip"), s.FullPath, faint("("+strings.Join(s.EnvTags, ", ")+" only)"))
		}
	}

	if len(set.Ignored) > 0 {
		fmt.Fprintf(w, "%s (%d)\n", bold("Account scripts ignored in database mode"), len(set.Ignored))
		for _, s := range set.Ignored {
			fmt.Fprintf(w, "  %s\n", faint(s.FullPath))
		}
	}
}

// printPlan prints the totals of a dry run.
func printPlan(w io.Writer, set *changeset.ChangeSet, environment string) {
	var apply, skip int
	for _, s := range set.Scripts() {
		if s.AppliesTo(environment) {
			apply++
		} else {
			skip++
		}
	}

	fmt.Fprintf(w, "Plan for %s: %s to apply, %s to skip\n", environment, green(apply), yellow(skip))
}

// printSummary prints the totals of a finished deployment.
func printSummary(w io.Writer, summary *deploy.Summary) {
	switch summary.Resize {
	case scaler.OutcomeResized:
		fmt.Fprintln(w, "Warehouse was resized for the deployment and restored afterwards")
	case scaler.OutcomeUnchanged:
		fmt.Fprintln(w, "Warehouse already had the configured size")
	}

	fmt.Fprintf(w, "Deployed from %s: %s applied, %s skipped\n",
		summary.Base, green(summary.Applied), yellow(summary.Skipped))
}
