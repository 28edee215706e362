package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagGroup defines a named group of flags for help output.
type flagGroup struct {
	title string
	flags []string
}

// flagGroups defines the logical groupings for CLI flags.
// Flags not listed here appear under "Other Flags".
var flagGroups = []flagGroup{
	{
		title: "Model Settings",
		flags: []string{"provider", "model", "timeout", "retries"},
	},
	{
		title: "Workspace",
		flags: []string{"workspace", "store", "no-config"},
	},
	{
		title: "Task Options",
		flags: []string{"description", "diff", "fetch", "remote", "ref", "lang", "require", "out", "json"},
	},
	{
		title: "Pull Requests",
		flags: []string{"branch", "title", "body", "body-file"},
	},
	{
		title: "Service",
		flags: []string{"addr"},
	},
	{
		title: "Output",
		flags: []string{"log-level", "no-color"},
	},
}

// lookupFlag finds a flag declared on c or inherited from its parents.
func lookupFlag(c *cobra.Command, name string) *pflag.Flag {
	if f := c.LocalFlags().Lookup(name); f != nil {
		return f
	}
	return c.InheritedFlags().Lookup(name)
}

// setGroupedUsage configures the command to display subcommands and flags in
// logical groups. Subcommands inherit the usage function.
func setGroupedUsage(cmd *cobra.Command) {
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		out := c.OutOrStderr()
		fmt.Fprintf(out, "Usage:\n  %s\n", c.UseLine())
		if c.HasAvailableSubCommands() {
			fmt.Fprintf(out, "  %s [command]\n", c.CommandPath())
		}

		writeCommands(c)

		// Track which flags have been placed in a group
		grouped := make(map[string]bool)

		for _, group := range flagGroups {
			fs := pflag.NewFlagSet(group.title, pflag.ContinueOnError)
			for _, name := range group.flags {
				if f := lookupFlag(c, name); f != nil {
					fs.AddFlag(f)
					grouped[name] = true
				}
			}
			if usages := fs.FlagUsages(); strings.TrimSpace(usages) != "" {
				fmt.Fprintf(out, "\n%s:\n%s", group.title, usages)
			}
		}

		// Collect ungrouped flags (help, version, any new flags not yet categorized)
		other := pflag.NewFlagSet("other", pflag.ContinueOnError)
		addUngrouped := func(f *pflag.Flag) {
			if !grouped[f.Name] && other.Lookup(f.Name) == nil {
				other.AddFlag(f)
			}
		}
		c.LocalFlags().VisitAll(addUngrouped)
		c.InheritedFlags().VisitAll(addUngrouped)
		if usages := other.FlagUsages(); strings.TrimSpace(usages) != "" {
			fmt.Fprintf(out, "\nOther Flags:\n%s", usages)
		}

		if c.HasAvailableSubCommands() {
			fmt.Fprintf(out, "\nUse \"%s [command] --help\" for more information about a command.\n", c.CommandPath())
		}
		return nil
	})
}

// writeCommands lists the available subcommands of c under their group titles.
func writeCommands(c *cobra.Command) {
	if !c.HasAvailableSubCommands() {
		return
	}
	out := c.OutOrStderr()
	line := func(sub *cobra.Command) {
		fmt.Fprintf(out, "  %s %s\n", rpad(sub.Name(), sub.NamePadding()), sub.Short)
	}

	for _, g := range c.Groups() {
		var cmds []*cobra.Command
		for _, sub := range c.Commands() {
			if sub.GroupID == g.ID && sub.IsAvailableCommand() {
				cmds = append(cmds, sub)
			}
		}
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", g.Title)
		for _, sub := range cmds {
			line(sub)
		}
	}

	var rest []*cobra.Command
	for _, sub := range c.Commands() {
		if sub.GroupID == "" && (sub.IsAvailableCommand() || sub.Name() == "help") {
			rest = append(rest, sub)
		}
	}
	if len(rest) > 0 {
		title := "Additional Commands:"
		if len(c.Groups()) == 0 {
			title = "Available Commands:"
		}
		fmt.Fprintf(out, "\n%s\n", title)
		for _, sub := range rest {
			line(sub)
		}
	}
}

func rpad(s string, padding int) string {
	return fmt.Sprintf("%-*s", padding, s)
}
