package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/reconcile"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and diff raw configuration blocks",
	Long: `Work with arbitrary configuration blocks below the policy schema.

Examples:
  fortix -d fw1 config show firewall address
  fortix -d fw1 config diff "firewall policy" -f candidate.conf
  fortix -d fw1 config diff "firewall policy" -f candidate.conf --replace -x`,
}

var configShowCmd = &cobra.Command{
	Use:   "show <path...>",
	Short: "Show the running config of one block",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dev, _, err := requireDevice(ctx)
		if err != nil {
			return err
		}
		defer dev.Disconnect()

		path := []string{strings.Join(args, " ")}
		_, raw, err := dev.Fetch(ctx, path)
		if err != nil {
			return err
		}
		fmt.Print(raw)
		return nil
	},
}

var diffFlags struct {
	file    string
	replace bool
}

var configDiffCmd = &cobra.Command{
	Use:   "diff <path...>",
	Short: "Diff a candidate block file against the running config",
	Long: `Reads a candidate block in device syntax from a file, diffs it against
the running config at the given path and prints the commands that would
converge the device. Add -x to apply them. All candidate parameters count
as managed: parameters present on the device but absent from the file are
unset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if diffFlags.file == "" {
			return fmt.Errorf("--file is required")
		}

		path := []string{strings.Join(args, " ")}
		data, err := os.ReadFile(diffFlags.file)
		if err != nil {
			return fmt.Errorf("reading candidate file: %w", err)
		}
		candidate, err := conftree.Parse(string(data), path...)
		if err != nil {
			return fmt.Errorf("candidate file %s: %w", diffFlags.file, err)
		}

		ctx := context.Background()
		dev, inv, err := requireDevice(ctx)
		if err != nil {
			return err
		}
		defer dev.Disconnect()

		store, release, err := backupStore(inv)
		if err != nil {
			return err
		}
		defer release()

		runner := reconcile.NewRunner(dev.Name, dev)
		res, applyErr := runner.Apply(ctx, path, candidate, reconcile.Options{
			DryRun:        !flagExecute,
			Replace:       diffFlags.replace,
			ManagedParams: managedFromCandidate(candidate),
			Backup:        store,
		})

		printResult(res, applyErr)
		return applyErr
	},
}

// managedFromCandidate treats every parameter name the candidate file
// mentions anywhere in its tree as managed, so removing a line from the
// file unsets it on the device.
func managedFromCandidate(candidate *conftree.Node) map[string]bool {
	managed := make(map[string]bool)
	var walk func(n *conftree.Node)
	walk = func(n *conftree.Node) {
		for _, name := range n.ParamNames() {
			managed[name] = true
		}
		for _, key := range n.ChildKeys() {
			child, _ := n.Child(key)
			walk(child)
		}
	}
	walk(candidate)
	return managed
}

func init() {
	configDiffCmd.Flags().StringVarP(&diffFlags.file, "file", "f", "", "candidate block file in device syntax")
	configDiffCmd.Flags().BoolVar(&diffFlags.replace, "replace", false, "delete entries not present in the candidate file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configDiffCmd)
}
