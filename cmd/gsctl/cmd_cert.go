package main

import (
	"os"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/gsmodule"
	"github.com/spf13/cobra"
)

var certVolatile bool

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the CA certificates stored on the module",
}

var certAddCmd = &cobra.Command{
	Use:   "add <name> <file.der>",
	Short: "Upload a DER encoded CA certificate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		der, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		m, closeFn, err := openModule()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := m.AddCert(args[0], certStorage(), der); err != nil {
			return err
		}
		cmd.Printf("certificate %s added (%d bytes)\n", args[0], len(der))

		return nil
	},
}

var certDelCmd = &cobra.Command{
	Use:   "del <name>",
	Short: "Delete a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openModule()
		if err != nil {
			return err
		}
		defer closeFn()

		m.Certs().Track(gsmodule.CertInfo{Name: args[0], Storage: certStorage()})
		if err := m.DeleteCert(args[0]); err != nil {
			return err
		}
		cmd.Printf("certificate %s deleted\n", args[0])

		return nil
	},
}

func init() {
	certCmd.PersistentFlags().BoolVar(&certVolatile, "volatile", false, "Use volatile storage instead of flash")

	certCmd.AddCommand(certAddCmd)
	certCmd.AddCommand(certDelCmd)
}

func certStorage() atcmd.Storage {
	if certVolatile {
		return atcmd.StorageVolatile
	}

	return atcmd.StorageFlash
}
