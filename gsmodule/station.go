package gsmodule

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
)

// Association selects the network joined by Associate.
type Association struct {
	SSID string
	// BSSID restricts the access point. Empty matches any.
	BSSID string
	// Channel restricts the radio channel. 0 means any channel.
	Channel uint8
	// BestRSSI makes the module pick the strongest of several matching
	// access points instead of the first one found.
	BestRSSI bool
}

// TimeSyncRequest configures SNTP time synchronization.
type TimeSyncRequest struct {
	Server netip.Addr
	// TimeoutSec bounds one synchronization attempt.
	TimeoutSec uint8
	// IntervalSec is the resync period. 0 requests a single synchronization.
	IntervalSec uint32
}

// SetAuth sets the WEP authentication mode.
func (m *Module) SetAuth(a atcmd.Auth) error {
	if err := m.exec(atcmd.SetAuth(a), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.Auth = a })

	return nil
}

// SetSecurity restricts the security modes used when associating.
func (m *Module) SetSecurity(sec atcmd.Security) error {
	if err := m.exec(atcmd.SetSecurity(sec), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.Security = sec })

	return nil
}

// SetWPAPassphrase sets the WPA/WPA2 passphrase.
func (m *Module) SetWPAPassphrase(passphrase string) error {
	if err := m.exec(atcmd.WPAPassphrase(passphrase), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.WPAPassphraseSet = true })

	return nil
}

// SetWEPKey sets WEP key 1.
func (m *Module) SetWEPKey(key string) error {
	if err := m.exec(atcmd.WEPKey(key), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.WEPKeySet = true })

	return nil
}

// SetPSKPassphrase stores passphrase and lets the module precompute the PSK
// for ssid, which shortens later associations.
func (m *Module) SetPSKPassphrase(ssid string, passphrase string) error {
	if err := m.exec(atcmd.PSKPassphrase(ssid, passphrase), m.cfg.associateTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.PSKSSID = ssid })

	return nil
}

// Associate joins the network described by a.
func (m *Module) Associate(a Association) error {
	if err := m.exec(atcmd.Associate(a.SSID, a.BSSID, a.Channel, a.BestRSSI), m.cfg.associateTimeout); err != nil {
		return err
	}
	m.logger.Info("associated", "ssid", a.SSID, "bssid", a.BSSID, "channel", a.Channel)

	return nil
}

// Disassociate leaves the current network.
func (m *Module) Disassociate() error {
	if err := m.exec(atcmd.Disassociate(), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.logger.Info("disassociated")

	return nil
}

// SetDHCP enables or disables the DHCP client. A non-empty hostname is sent
// to the DHCP server.
func (m *Module) SetDHCP(enable bool, hostname string) error {
	if err := m.exec(atcmd.DHCP(enable, hostname), m.cfg.associateTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) {
		s.DHCP = enable
		s.DHCPHostname = hostname
	})

	return nil
}

// SetStaticIP configures the address used while DHCP is disabled.
func (m *Module) SetStaticIP(cfg StaticIP) error {
	for _, addr := range []netip.Addr{cfg.IP, cfg.Netmask, cfg.Gateway} {
		if err := checkIPv4(addr); err != nil {
			return err
		}
	}
	cfg = StaticIP{IP: cfg.IP.Unmap(), Netmask: cfg.Netmask.Unmap(), Gateway: cfg.Gateway.Unmap()}

	if err := m.exec(atcmd.StaticIP(cfg.IP, cfg.Netmask, cfg.Gateway), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.StaticIP = cfg })

	return nil
}

// SetDNS sets the DNS servers. An invalid (zero) secondary is omitted.
func (m *Module) SetDNS(primary netip.Addr, secondary netip.Addr) error {
	if err := checkIPv4(primary); err != nil {
		return err
	}
	primary = primary.Unmap()

	if secondary.IsValid() {
		if err := checkIPv4(secondary); err != nil {
			return err
		}
		secondary = secondary.Unmap()
	}

	if err := m.exec(atcmd.DNSServers(primary, secondary), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) {
		s.DNSPrimary = primary
		s.DNSSecondary = secondary
	})

	return nil
}

// DNSLookup resolves host through the module. It returns 0.0.0.0 together
// with the error when the lookup fails.
func (m *Module) DNSLookup(host string) (netip.Addr, error) {
	cmd := atcmd.DNSLookup(host)

	reply, err := m.query(cmd, m.cfg.dnsTimeout)
	if err != nil {
		return netip.IPv4Unspecified(), err
	}

	addr, ok := atcmd.ParseIPReply(reply.Lines)
	if !ok {
		return netip.IPv4Unspecified(), m.commandFailed(cmd, fmt.Errorf("no address for %q", host))
	}

	return addr, nil
}

// TimeSync starts SNTP synchronization against req.Server.
func (m *Module) TimeSync(req TimeSyncRequest) error {
	if err := checkIPv4(req.Server); err != nil {
		return err
	}

	timeout := m.cfg.commandTimeout + time.Duration(req.TimeoutSec)*time.Second

	return m.exec(atcmd.TimeSync(req.Server.Unmap(), req.TimeoutSec, req.IntervalSec), timeout)
}

// SetParam sets a timing register.
func (m *Module) SetParam(p atcmd.Param, value uint16) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: ATS%d", ErrInvalidParam, p)
	}

	if err := m.exec(atcmd.SetParam(p, value), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.Params[p] = value })

	return nil
}

// SetNCMParam sets a network connection manager register.
func (m *Module) SetNCMParam(p atcmd.NCMParam, value uint16) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: NCM parameter %d", ErrInvalidParam, p)
	}

	if err := m.exec(atcmd.SetNCMParam(p, value), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.NCMParams[p] = value })

	return nil
}

// SetAutoAssociate sets the network joined by the connection manager and
// auto connect mode.
func (m *Module) SetAutoAssociate(a AutoAssociate) error {
	if err := m.exec(atcmd.AutoAssociate(a.Mode, a.SSID, a.BSSID, a.Channel), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.AutoAssociate = &a })

	return nil
}

// SetAutoConnectClient sets the client connection opened by the connection
// manager after association. ac.Host is an IPv4 address or a hostname.
func (m *Module) SetAutoConnectClient(ac AutoConnect) error {
	if ac.Host == "" {
		return ErrInvalidAddress
	}
	ac.Server = false

	if err := m.exec(atcmd.AutoConnectClient(ac.Host, ac.Port, ac.Protocol), m.cfg.commandTimeout); err != nil {
		return err
	}
	m.updateConfig(func(s *ConfigSnapshot) { s.AutoConnect = &ac })

	return nil
}

// SetAutoConnectServer makes the connection manager listen on port after
// association.
func (m *Module) SetAutoConnectServer(port uint16, proto atcmd.Protocol) error {
	if err := m.exec(atcmd.AutoConnectServer(port, proto), m.cfg.commandTimeout); err != nil {
		return err
	}

	ac := AutoConnect{Port: port, Protocol: proto, Server: true}
	m.updateConfig(func(s *ConfigSnapshot) { s.AutoConnect = &ac })

	return nil
}
