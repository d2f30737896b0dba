package main

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/arloliu/go-gswifi/atcmd"
	"github.com/arloliu/go-gswifi/gsmodule"
	"gopkg.in/yaml.v3"
)

// DeviceFile describes a module and the configuration "gsctl run" applies.
type DeviceFile struct {
	Port        string           `yaml:"port"`
	Baud        int              `yaml:"baud"`
	LogLevel    string           `yaml:"logLevel"`
	MetricsAddr string           `yaml:"metricsAddr"`
	Network     NetworkSection   `yaml:"network"`
	Connect     *ConnectTarget   `yaml:"connect"`
	NCM         NCMSection       `yaml:"ncm"`
	Params      map[uint8]uint16 `yaml:"params"`
	NCMParams   map[uint8]uint16 `yaml:"ncmParams"`
	Profile     *ProfileSection  `yaml:"profile"`
}

// NetworkSection is the wireless and IP configuration.
type NetworkSection struct {
	SSID       string           `yaml:"ssid"`
	BSSID      string           `yaml:"bssid"`
	Channel    uint8            `yaml:"channel"`
	Security   string           `yaml:"security"`
	Passphrase string           `yaml:"passphrase"`
	DHCP       *bool            `yaml:"dhcp"`
	Hostname   string           `yaml:"hostname"`
	StaticIP   *StaticIPSection `yaml:"staticIP"`
	DNS        []string         `yaml:"dns"`
}

// StaticIPSection is the address used when DHCP is off.
type StaticIPSection struct {
	IP      string `yaml:"ip"`
	Netmask string `yaml:"netmask"`
	Gateway string `yaml:"gateway"`
}

// ConnectTarget is the auto connect target.
type ConnectTarget struct {
	Host     string `yaml:"host"`
	Port     uint16 `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Server   bool   `yaml:"server"`
}

// NCMSection holds the connection manager settings.
type NCMSection struct {
	Driver           string        `yaml:"driver"`
	AssociateOnly    bool          `yaml:"associateOnly"`
	Persist          bool          `yaml:"persist"`
	LimitedAP        bool          `yaml:"limitedAP"`
	AssociateRetries *uint16       `yaml:"associateRetries"`
	ConnectRetries   *uint16       `yaml:"connectRetries"`
	UnlimitedZero    bool          `yaml:"unlimitedZero"`
	RetryPeriod      time.Duration `yaml:"retryPeriod"`
}

// ProfileSection selects the profile the applied configuration is saved to.
type ProfileSection struct {
	Save    *uint8 `yaml:"save"`
	Default *uint8 `yaml:"default"`
}

var securityNames = map[string]atcmd.Security{
	"":               atcmd.SecurityAuto,
	"auto":           atcmd.SecurityAuto,
	"open":           atcmd.SecurityOpen,
	"wep":            atcmd.SecurityWEP,
	"wpa-psk":        atcmd.SecurityWPA1PSK,
	"wpa2-psk":       atcmd.SecurityWPA2PSK,
	"wpa-any-psk":    atcmd.SecurityWPAPSK,
	"wpa-enterprise": atcmd.SecurityWPAEnterprise,
}

// loadDevice reads and validates a device file.
func loadDevice(path string) (*DeviceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseDevice(data)
}

func parseDevice(data []byte) (*DeviceFile, error) {
	dev := &DeviceFile{}
	if err := yaml.Unmarshal(data, dev); err != nil {
		return nil, fmt.Errorf("device file: %w", err)
	}

	if dev.Port == "" {
		return nil, errors.New("device file: port is required")
	}

	if _, ok := securityNames[strings.ToLower(dev.Network.Security)]; !ok {
		return nil, fmt.Errorf("device file: unknown security %q", dev.Network.Security)
	}

	if _, err := parseDriver(dev.NCM.Driver); err != nil {
		return nil, fmt.Errorf("device file: %w", err)
	}

	if dev.Connect != nil {
		if _, err := atcmd.ParseProtocol(dev.Connect.Protocol); err != nil {
			return nil, fmt.Errorf("device file: %w", err)
		}
	}

	return dev, nil
}

// moduleOptions returns the host-side options of the device file.
func (d *DeviceFile) moduleOptions() []gsmodule.ModuleOption {
	policy := gsmodule.RetryPolicy{
		Associate: gsmodule.DefaultAssociateRetries,
		Connect:   gsmodule.DefaultConnectRetries,
		Zero:      gsmodule.ZeroRetryOnce,
	}
	if d.NCM.AssociateRetries != nil {
		policy.Associate = *d.NCM.AssociateRetries
	}
	if d.NCM.ConnectRetries != nil {
		policy.Connect = *d.NCM.ConnectRetries
	}
	if d.NCM.UnlimitedZero {
		policy.Zero = gsmodule.ZeroRetryUnlimited
	}

	opts := []gsmodule.ModuleOption{gsmodule.WithRetryPolicy(policy)}
	if d.NCM.RetryPeriod > 0 {
		opts = append(opts, gsmodule.WithNCMRetryPeriod(d.NCM.RetryPeriod))
	}

	return opts
}

func (d *DeviceFile) ncmOptions() gsmodule.NCMOptions {
	driver, _ := parseDriver(d.NCM.Driver)
	mode := atcmd.NCMStation
	if d.NCM.LimitedAP {
		mode = atcmd.NCMLimitedAP
	}

	return gsmodule.NCMOptions{
		AssociateOnly: d.NCM.AssociateOnly,
		Persist:       d.NCM.Persist,
		Mode:          mode,
		Driver:        driver,
	}
}

// deviceModule is the part of gsmodule.Module used to apply a device file.
type deviceModule interface {
	SetSecurity(sec atcmd.Security) error
	SetWPAPassphrase(passphrase string) error
	SetDHCP(enable bool, hostname string) error
	SetStaticIP(cfg gsmodule.StaticIP) error
	SetDNS(primary netip.Addr, secondary netip.Addr) error
	SetAutoAssociate(a gsmodule.AutoAssociate) error
	SetAutoConnectClient(ac gsmodule.AutoConnect) error
	SetAutoConnectServer(port uint16, proto atcmd.Protocol) error
	SetParam(p atcmd.Param, value uint16) error
	SetNCMParam(p atcmd.NCMParam, value uint16) error
	SaveProfile(n uint8) error
	SetDefaultProfile(n uint8) error
}

// apply configures m from the device file. The NCM is not enabled here.
func (d *DeviceFile) apply(m deviceModule) error {
	n := d.Network

	if err := m.SetSecurity(securityNames[strings.ToLower(n.Security)]); err != nil {
		return err
	}

	if n.Passphrase != "" {
		if err := m.SetWPAPassphrase(n.Passphrase); err != nil {
			return err
		}
	}

	if err := d.applyIP(m); err != nil {
		return err
	}

	if n.SSID != "" {
		if err := m.SetAutoAssociate(gsmodule.AutoAssociate{SSID: n.SSID, BSSID: n.BSSID, Channel: n.Channel}); err != nil {
			return err
		}
	}

	if err := d.applyConnect(m); err != nil {
		return err
	}

	for p, v := range d.Params {
		if err := m.SetParam(atcmd.Param(p), v); err != nil {
			return err
		}
	}

	for p, v := range d.NCMParams {
		if err := m.SetNCMParam(atcmd.NCMParam(p), v); err != nil {
			return err
		}
	}

	if d.Profile != nil && d.Profile.Save != nil {
		if err := m.SaveProfile(*d.Profile.Save); err != nil {
			return err
		}
	}

	if d.Profile != nil && d.Profile.Default != nil {
		if err := m.SetDefaultProfile(*d.Profile.Default); err != nil {
			return err
		}
	}

	return nil
}

func (d *DeviceFile) applyIP(m deviceModule) error {
	n := d.Network

	if n.DHCP != nil || n.Hostname != "" {
		enable := n.DHCP == nil || *n.DHCP
		if err := m.SetDHCP(enable, n.Hostname); err != nil {
			return err
		}
	}

	if n.StaticIP != nil {
		var cfg gsmodule.StaticIP
		for _, f := range []struct {
			dst *netip.Addr
			src string
		}{
			{&cfg.IP, n.StaticIP.IP},
			{&cfg.Netmask, n.StaticIP.Netmask},
			{&cfg.Gateway, n.StaticIP.Gateway},
		} {
			addr, err := netip.ParseAddr(f.src)
			if err != nil {
				return fmt.Errorf("device file: static ip: %w", err)
			}
			*f.dst = addr
		}

		if err := m.SetStaticIP(cfg); err != nil {
			return err
		}
	}

	if len(n.DNS) > 0 {
		var servers [2]netip.Addr
		for i, s := range n.DNS {
			if i >= len(servers) {
				break
			}
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return fmt.Errorf("device file: dns: %w", err)
			}
			servers[i] = addr
		}

		if err := m.SetDNS(servers[0], servers[1]); err != nil {
			return err
		}
	}

	return nil
}

func (d *DeviceFile) applyConnect(m deviceModule) error {
	if d.Connect == nil {
		return nil
	}

	proto, err := atcmd.ParseProtocol(d.Connect.Protocol)
	if err != nil {
		return err
	}

	if d.Connect.Server {
		return m.SetAutoConnectServer(d.Connect.Port, proto)
	}

	return m.SetAutoConnectClient(gsmodule.AutoConnect{Host: d.Connect.Host, Port: d.Connect.Port, Protocol: proto})
}
