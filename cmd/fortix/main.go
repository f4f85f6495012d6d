// Fortix - declarative FortiOS configuration tool
//
// A CLI for reconciling FortiOS firewall configuration to a declared
// desired state:
//   - Dry-run by default (preview the diff, require -x to execute)
//   - Minimal change sets: only parameters that actually differ are sent
//   - Pre-change backups (file or Redis store)
//   - Audit logging of every apply
//
// Context flags select the device; commands operate on it:
//
//	fortix -d <device> policy set --id 42 --src-addr all --dst-addr webservers \
//	    --service HTTP --service HTTPS --action accept -x
//	fortix -d <device> policy delete --id 42 -x
//	fortix -d <device> policy show
//	fortix -d <device> config show firewall address
//	fortix -d <device> config diff "firewall policy" -f candidate.conf
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fortix-network/fortix/pkg/audit"
	"github.com/fortix-network/fortix/pkg/backup"
	"github.com/fortix-network/fortix/pkg/device"
	"github.com/fortix-network/fortix/pkg/inventory"
	"github.com/fortix-network/fortix/pkg/util"
)

var version = "0.2.0"

var (
	flagInventory string
	flagDevice    string
	flagExecute   bool
	flagBackup    bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "fortix",
	Short:         "Declarative FortiOS configuration management",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagVerbose {
			return util.SetLogLevel("debug")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fortix", version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagInventory, "inventory", "c", "", "inventory file (default /etc/fortix/inventory.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagDevice, "device", "d", "", "device name from the inventory")
	rootCmd.PersistentFlags().BoolVarP(&flagExecute, "execute", "x", false, "execute changes (default is dry-run preview)")
	rootCmd.PersistentFlags().BoolVar(&flagBackup, "backup", false, "save pre-change config before applying")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// requireDevice loads the inventory, resolves -d and opens the session.
// The caller owns the returned device and must Disconnect it.
func requireDevice(ctx context.Context) (*device.Device, *inventory.File, error) {
	if flagDevice == "" {
		return nil, nil, fmt.Errorf("device required: use -d <device>")
	}

	inv, err := inventory.Load(flagInventory)
	if err != nil {
		return nil, nil, err
	}

	profile, err := inv.Device(flagDevice)
	if err != nil {
		return nil, nil, err
	}

	if profile.Password == "" {
		pass, err := promptPassword(profile.User, profile.Host)
		if err != nil {
			return nil, nil, err
		}
		profile.Password = pass
	}

	dev := device.NewDevice(flagDevice, profile)
	if err := dev.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return dev, inv, nil
}

func promptPassword(user, host string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// backupStore resolves the --backup flag against the inventory's backup
// section. The cleanup func releases store resources (Redis connection).
func backupStore(inv *inventory.File) (backup.Store, func(), error) {
	if !flagBackup {
		return nil, func() {}, nil
	}
	cfg := inv.Backup
	if cfg == nil {
		cfg = &inventory.BackupConfig{Type: "file", Dir: "backups"}
	}
	switch cfg.Type {
	case "file":
		return backup.NewFileStore(cfg.Dir), func() {}, nil
	case "redis":
		store := backup.NewRedisStore(cfg.Addr)
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backup store type %q", cfg.Type)
}

// auditLogger opens the audit trail when the inventory configures one.
// Returns nil without error when auditing is not configured.
func auditLogger(inv *inventory.File) (*audit.Logger, error) {
	if inv.Audit == nil || inv.Audit.Path == "" {
		return nil, nil
	}
	return audit.NewLogger(inv.Audit.Path)
}
