package gsmodule

import (
	"maps"
	"net/netip"

	"github.com/arloliu/go-gswifi/atcmd"
)

// AutoAssociate is the association target used by the network connection
// manager and auto connect mode.
type AutoAssociate struct {
	SSID string
	// BSSID restricts the access point, e.g. "12:34:56:78:9a:bc". Empty matches any.
	BSSID string
	// Channel restricts the radio channel. 0 means any channel.
	Channel uint8
	Mode    atcmd.WirelessMode
}

// AutoConnect is the transport-layer target used by the network connection
// manager after association.
type AutoConnect struct {
	// Host is an IPv4 address or a hostname resolved by the module.
	// Ignored when Server is set.
	Host     string
	Port     uint16
	Protocol atcmd.Protocol
	// Server makes the manager listen on Port instead of connecting.
	Server bool
}

// StaticIP is the address configuration applied when DHCP is disabled.
type StaticIP struct {
	IP      netip.Addr
	Netmask netip.Addr
	Gateway netip.Addr
}

// NCMSettings are the manager settings folded into the configuration when
// enabled with NCMOptions.Persist.
type NCMSettings struct {
	Enabled       bool
	AssociateOnly bool
	Mode          atcmd.NCMMode
}

// ConfigSnapshot mirrors the module configuration that a profile stores.
//
// The mirror only reflects commands this host issued successfully; after
// loading a profile that was never saved by this process it is empty and
// Known is false.
type ConfigSnapshot struct {
	// Known is false when the snapshot was loaded from a slot whose contents
	// are unknown to the host.
	Known bool

	Auth             atcmd.Auth
	Security         atcmd.Security
	WPAPassphraseSet bool
	WEPKeySet        bool
	PSKSSID          string

	DHCP         bool
	DHCPHostname string
	StaticIP     StaticIP
	DNSPrimary   netip.Addr
	DNSSecondary netip.Addr

	AutoAssociate *AutoAssociate
	AutoConnect   *AutoConnect
	NCM           *NCMSettings

	Params    map[atcmd.Param]uint16
	NCMParams map[atcmd.NCMParam]uint16
}

func newConfigSnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		Known:     true,
		DHCP:      true,
		Params:    make(map[atcmd.Param]uint16),
		NCMParams: make(map[atcmd.NCMParam]uint16),
	}
}

// Clone returns a deep copy.
func (s ConfigSnapshot) Clone() ConfigSnapshot {
	c := s
	if s.AutoAssociate != nil {
		v := *s.AutoAssociate
		c.AutoAssociate = &v
	}
	if s.AutoConnect != nil {
		v := *s.AutoConnect
		c.AutoConnect = &v
	}
	if s.NCM != nil {
		v := *s.NCM
		c.NCM = &v
	}

	c.Params = maps.Clone(s.Params)
	if c.Params == nil {
		c.Params = make(map[atcmd.Param]uint16)
	}
	c.NCMParams = maps.Clone(s.NCMParams)
	if c.NCMParams == nil {
		c.NCMParams = make(map[atcmd.NCMParam]uint16)
	}

	return c
}
