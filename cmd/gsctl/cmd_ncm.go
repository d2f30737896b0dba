package main

import (
	"fmt"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/gsmodule"
	"github.com/spf13/cobra"
)

var (
	ncmAssociateOnly bool
	ncmPersist       bool
	ncmLimitedAP     bool
)

var ncmCmd = &cobra.Command{
	Use:   "ncm",
	Short: "Enable or disable the module's network connection manager",
}

var ncmEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Let the module associate and connect on its own",
	Long: `Enables the network connection manager of the module. The module joins
the auto associate network and, unless --associate-only is given, opens the
auto connect target. Use "gsctl run" to drive the manager from the host.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, closeFn, err := openModule()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := m.NCM().Enable(ncmOptions(gsmodule.DriverModule)); err != nil {
			return err
		}
		cmd.Println("ncm enabled")

		return nil
	},
}

var ncmDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop the module's network connection manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, closeFn, err := openModule()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := m.NCM().Disable(); err != nil {
			return err
		}
		cmd.Println("ncm disabled")

		return nil
	},
}

func init() {
	ncmEnableCmd.Flags().BoolVar(&ncmAssociateOnly, "associate-only", false, "Stop after association")
	ncmEnableCmd.Flags().BoolVar(&ncmPersist, "persist", false, "Store the setting in the current profile")
	ncmEnableCmd.Flags().BoolVar(&ncmLimitedAP, "limited-ap", false, "Run as limited access point instead of station")

	ncmCmd.AddCommand(ncmEnableCmd)
	ncmCmd.AddCommand(ncmDisableCmd)
}

func ncmOptions(driver gsmodule.NCMDriver) gsmodule.NCMOptions {
	mode := atcmd.NCMStation
	if ncmLimitedAP {
		mode = atcmd.NCMLimitedAP
	}

	return gsmodule.NCMOptions{
		AssociateOnly: ncmAssociateOnly,
		Persist:       ncmPersist,
		Mode:          mode,
		Driver:        driver,
	}
}

func parseDriver(s string) (gsmodule.NCMDriver, error) {
	switch s {
	case "", "module":
		return gsmodule.DriverModule, nil
	case "host":
		return gsmodule.DriverHost, nil
	default:
		return gsmodule.DriverModule, fmt.Errorf("unknown ncm driver %q", s)
	}
}
