package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortix-network/fortix/pkg/audit"
	"github.com/fortix-network/fortix/pkg/conftree"
	"github.com/fortix-network/fortix/pkg/inventory"
	"github.com/fortix-network/fortix/pkg/policy"
	"github.com/fortix-network/fortix/pkg/reconcile"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage IPv4 firewall policies",
	Long: `Manage IPv4 firewall policies on FortiOS devices.

Requires -d (device) flag. Changes preview by default; add -x to execute.

Examples:
  fortix -d fw1 policy show
  fortix -d fw1 policy set --id 42 --src-addr internal --dst-addr all --service DNS --action accept --nat -x
  fortix -d fw1 policy delete --id 42 -x`,
}

var setFlags struct {
	id               int
	srcIntf          string
	dstIntf          string
	srcAddr          []string
	dstAddr          []string
	srcAddrNegate    bool
	dstAddrNegate    bool
	action           string
	service          []string
	serviceNegate    bool
	schedule         string
	nat              bool
	fixedPort        bool
	poolName         string
	avProfile        string
	webfilterProfile string
	ipsSensor        string
	applicationList  string
	comment          string
}

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or converge a policy to the declared state",
	RunE: func(cmd *cobra.Command, args []string) error {
		pol := &policy.Policy{
			ID:               setFlags.id,
			SrcIntf:          setFlags.srcIntf,
			DstIntf:          setFlags.dstIntf,
			SrcAddr:          setFlags.srcAddr,
			DstAddr:          setFlags.dstAddr,
			SrcAddrNegate:    setFlags.srcAddrNegate,
			DstAddrNegate:    setFlags.dstAddrNegate,
			Action:           policy.Action(setFlags.action),
			Service:          setFlags.service,
			ServiceNegate:    setFlags.serviceNegate,
			Schedule:         setFlags.schedule,
			NAT:              setFlags.nat,
			FixedPort:        setFlags.fixedPort,
			PoolName:         setFlags.poolName,
			AVProfile:        setFlags.avProfile,
			WebfilterProfile: setFlags.webfilterProfile,
			IPSSensor:        setFlags.ipsSensor,
			ApplicationList:  setFlags.applicationList,
			Comment:          setFlags.comment,
		}
		if err := pol.Validate(); err != nil {
			return err
		}

		return reconcilePolicy(fmt.Sprintf("policy-set %d", pol.ID), func(running *conftree.Node) (*conftree.Node, error) {
			return pol.Candidate(running), nil
		})
	},
}

var deleteFlags struct {
	id int
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a policy (state absent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteFlags.id <= 0 {
			return fmt.Errorf("--id is required")
		}
		return reconcilePolicy(fmt.Sprintf("policy-delete %d", deleteFlags.id), func(running *conftree.Node) (*conftree.Node, error) {
			return policy.Absent(running, deleteFlags.id), nil
		})
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show running policies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dev, _, err := requireDevice(ctx)
		if err != nil {
			return err
		}
		defer dev.Disconnect()

		running, _, err := dev.Fetch(ctx, policy.BlockPath())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			entry, ok := running.Child(args[0])
			if !ok {
				return fmt.Errorf("policy %s not found", args[0])
			}
			for _, line := range conftree.RenderTree(entry) {
				fmt.Println(line)
			}
			return nil
		}

		keys := running.ChildKeys()
		if len(keys) == 0 {
			fmt.Println("No policies configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACTION\tSRC\tDST\tSERVICE\tNAT")
		fmt.Fprintln(w, "--\t------\t---\t---\t-------\t---")
		for _, key := range keys {
			p, _ := running.Child(key)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				key,
				paramOr(p, "action", "-"),
				paramOr(p, "srcaddr", "-"),
				paramOr(p, "dstaddr", "-"),
				paramOr(p, "service", "-"),
				paramOr(p, "nat", "disable"))
		}
		w.Flush()
		return nil
	},
}

func paramOr(n *conftree.Node, name, fallback string) string {
	if v, ok := n.GetParam(name); ok {
		return v
	}
	return fallback
}

// reconcilePolicy runs one reconciliation of the firewall policy table,
// audits the outcome, and prints either the preview (dry-run) or the apply
// result.
func reconcilePolicy(operation string, build reconcile.CandidateFunc) error {
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

	opts := reconcile.Options{
		DryRun:        !flagExecute,
		Replace:       true,
		ManagedParams: policy.ManagedParams(),
		Backup:        store,
	}

	runner := reconcile.NewRunner(dev.Name, dev)
	start := time.Now()
	res, applyErr := runner.Reconcile(ctx, policy.BlockPath(), build, opts)

	if err := logAudit(inv, dev.Name, operation, res, applyErr, time.Since(start)); err != nil {
		return err
	}

	printResult(res, applyErr)
	return applyErr
}

func logAudit(inv *inventory.File, deviceName, operation string, res *reconcile.Result, applyErr error, elapsed time.Duration) error {
	logger, err := auditLogger(inv)
	if err != nil {
		return err
	}
	if logger == nil {
		return nil
	}
	defer logger.Close()

	event := &audit.Event{
		Device:    deviceName,
		Path:      strings.Join(policy.BlockPath(), " "),
		Operation: operation,
		Changed:   res.Changed,
		DryRun:    !flagExecute,
		Success:   applyErr == nil,
		Duration:  elapsed,
	}
	if flagExecute {
		event.Commands = res.Applied
	} else {
		event.Commands = res.Commands
	}
	if applyErr != nil {
		event.Error = applyErr.Error()
	}
	return logger.Log(event)
}

func printResult(res *reconcile.Result, applyErr error) {
	switch {
	case applyErr != nil:
		if len(res.Applied) > 0 {
			fmt.Printf("Partial apply: %d of %d commands succeeded before failure:\n", len(res.Applied), len(res.Commands))
			for _, cmd := range res.Applied {
				fmt.Println("  " + cmd)
			}
		}
	case !flagExecute:
		if !res.Changed {
			fmt.Println("No changes: device already matches the declared state")
			return
		}
		fmt.Println("Dry run. The following commands would be sent (use -x to execute):")
		for _, cmd := range res.Commands {
			fmt.Println("  " + cmd)
		}
		if res.Preview != "" {
			fmt.Println("\nConfig diff:")
			fmt.Print(res.Preview)
		}
	case !res.Changed:
		fmt.Println("No changes: device already matches the declared state")
	default:
		fmt.Printf("Applied %d commands\n", len(res.Applied))
		if res.BackupLabel != "" {
			fmt.Printf("Pre-change backup: %s\n", res.BackupLabel)
		}
	}
}

func init() {
	f := policySetCmd.Flags()
	f.IntVar(&setFlags.id, "id", 0, "policy ID (required)")
	f.StringVar(&setFlags.srcIntf, "src-intf", "any", "source interface")
	f.StringVar(&setFlags.dstIntf, "dst-intf", "any", "destination interface")
	f.StringSliceVar(&setFlags.srcAddr, "src-addr", nil, "source address object(s) (required)")
	f.StringSliceVar(&setFlags.dstAddr, "dst-addr", nil, "destination address object(s) (required)")
	f.BoolVar(&setFlags.srcAddrNegate, "src-addr-negate", false, "negate source addresses")
	f.BoolVar(&setFlags.dstAddrNegate, "dst-addr-negate", false, "negate destination addresses")
	f.StringVar(&setFlags.action, "action", "", "accept or deny (required)")
	f.StringSliceVar(&setFlags.service, "service", nil, "service object(s) (required)")
	f.BoolVar(&setFlags.serviceNegate, "service-negate", false, "negate services")
	f.StringVar(&setFlags.schedule, "schedule", "always", "policy schedule")
	f.BoolVar(&setFlags.nat, "nat", false, "enable NAT")
	f.BoolVar(&setFlags.fixedPort, "fixedport", false, "use fixed port for NAT (requires --nat)")
	f.StringVar(&setFlags.poolName, "poolname", "", "NAT pool name (requires --nat)")
	f.StringVar(&setFlags.avProfile, "av-profile", "", "antivirus profile")
	f.StringVar(&setFlags.webfilterProfile, "webfilter-profile", "", "webfilter profile")
	f.StringVar(&setFlags.ipsSensor, "ips-sensor", "", "IPS sensor profile")
	f.StringVar(&setFlags.applicationList, "application-list", "", "application control list")
	f.StringVar(&setFlags.comment, "comment", "", "free-text comment")

	policyDeleteCmd.Flags().IntVar(&deleteFlags.id, "id", 0, "policy ID (required)")

	policyCmd.AddCommand(policySetCmd)
	policyCmd.AddCommand(policyDeleteCmd)
	policyCmd.AddCommand(policyShowCmd)
}
