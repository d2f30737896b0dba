package main

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/gsmodule"
	"github.com/spf13/cobra"
)

var (
	connectSend      string
	connectTLSCert   string
	connectLocalPort uint16
	connectKeep      bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a client connection and optionally send a payload",
}

var connectTCPCmd = &cobra.Command{
	Use:   "tcp <ip> <port>",
	Short: "Open a TCP connection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(cmd, atcmd.ProtocolTCP, args)
	},
}

var connectUDPCmd = &cobra.Command{
	Use:   "udp <ip> <port>",
	Short: "Open a UDP connection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(cmd, atcmd.ProtocolUDP, args)
	},
}

func init() {
	connectCmd.PersistentFlags().StringVar(&connectSend, "send", "", "Payload written as one frame after connecting")
	connectCmd.PersistentFlags().BoolVar(&connectKeep, "keep", false, "Leave the connection open on exit")
	connectTCPCmd.Flags().StringVar(&connectTLSCert, "tls", "", "Secure the connection with this CA certificate stored on the module")
	connectUDPCmd.Flags().Uint16Var(&connectLocalPort, "local-port", 0, "Local UDP port (0 lets the module choose)")

	connectCmd.AddCommand(connectTCPCmd)
	connectCmd.AddCommand(connectUDPCmd)
}

func parseEndpoint(ipArg string, portArg string) (netip.Addr, uint16, error) {
	ip, err := netip.ParseAddr(ipArg)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid address %q: %w", ipArg, err)
	}

	port, err := strconv.ParseUint(portArg, 10, 16)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid port %q", portArg)
	}

	return ip, uint16(port), nil
}

func runConnect(cmd *cobra.Command, proto atcmd.Protocol, args []string) error {
	ip, port, err := parseEndpoint(args[0], args[1])
	if err != nil {
		return err
	}

	m, closeFn, err := openModule()
	if err != nil {
		return err
	}
	defer closeFn()

	var cid gsmodule.CID
	if proto == atcmd.ProtocolUDP {
		cid, err = m.ConnectUDP(ip, port, connectLocalPort)
	} else {
		cid, err = m.ConnectTCP(ip, port)
	}
	if err != nil {
		return err
	}
	cmd.Printf("connected, cid %s\n", cid)

	if connectTLSCert != "" {
		m.Certs().Track(gsmodule.CertInfo{Name: connectTLSCert, Storage: atcmd.StorageFlash})
		if err := m.Secure(cid, connectTLSCert); err != nil {
			return err
		}
		cmd.Println("tls established")
	}

	if connectSend != "" {
		if err := m.WriteData(cid, []byte(connectSend)); err != nil {
			return err
		}
	}

	if connectKeep {
		return nil
	}

	return m.Disconnect(cid)
}
