package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Save, load or select the default configuration profile",
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <0|1>",
	Short: "Save the current configuration into a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfile(cmd, args[0], "saved", func(m profileOps, n uint8) error { return m.SaveProfile(n) })
	},
}

var profileLoadCmd = &cobra.Command{
	Use:   "load <0|1>",
	Short: "Make a profile the current configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfile(cmd, args[0], "loaded", func(m profileOps, n uint8) error { return m.LoadProfile(n) })
	},
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default <0|1>",
	Short: "Select the profile loaded at power-on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfile(cmd, args[0], "set as default", func(m profileOps, n uint8) error { return m.SetDefaultProfile(n) })
	},
}

func init() {
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileLoadCmd)
	profileCmd.AddCommand(profileDefaultCmd)
}

type profileOps interface {
	SaveProfile(n uint8) error
	LoadProfile(n uint8) error
	SetDefaultProfile(n uint8) error
}

func parseProfile(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid profile number %q", s)
	}

	return uint8(n), nil
}

func withProfile(cmd *cobra.Command, arg string, verb string, op func(profileOps, uint8) error) error {
	n, err := parseProfile(arg)
	if err != nil {
		return err
	}

	m, closeFn, err := openModule()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := op(m, n); err != nil {
		return err
	}

	cmd.Printf("profile %d %s\n", n, verb)

	return nil
}
