package atcmd

import (
	"fmt"
	"net/netip"
	"strconv"
)

// Line terminator appended by transports after every command.
const CRLF = "\r\n"

func boolDigit(b bool) int {
	if b {
		return 1
	}

	return 0
}

// SetAuth renders AT+WAUTH.
func SetAuth(a Auth) string {
	return fmt.Sprintf("AT+WAUTH=%d", a)
}

// SetSecurity renders AT+WSEC.
func SetSecurity(s Security) string {
	return fmt.Sprintf("AT+WSEC=%d", s)
}

// WPAPassphrase renders AT+WWPA with a quoted passphrase.
func WPAPassphrase(passphrase string) string {
	return "AT+WWPA=" + Quote(passphrase)
}

// WEPKey renders AT+WWEP1. The key field is not quoted on the wire.
func WEPKey(key string) string {
	return "AT+WWEP1=" + Escape(key)
}

// PSKPassphrase renders AT+WPAPSK, which stores the passphrase and
// precomputes the PSK for ssid.
func PSKPassphrase(ssid string, passphrase string) string {
	return "AT+WPAPSK=" + Quote(ssid) + "," + Quote(passphrase)
}

// Associate renders AT+WA. An empty bssid matches any access point and
// channel 0 means any channel.
func Associate(ssid string, bssid string, channel uint8, bestRSSI bool) string {
	return fmt.Sprintf("AT+WA=%s,%s,%d,%d", Quote(ssid), Escape(bssid), channel, boolDigit(bestRSSI))
}

// Disassociate renders AT+WD.
func Disassociate() string {
	return "AT+WD"
}

// DHCP renders AT+NDHCP, optionally registering a DHCP hostname.
func DHCP(enable bool, hostname string) string {
	if hostname == "" {
		return fmt.Sprintf("AT+NDHCP=%d", boolDigit(enable))
	}

	return fmt.Sprintf("AT+NDHCP=%d,%s", boolDigit(enable), Escape(hostname))
}

// StaticIP renders AT+NSET.
func StaticIP(ip, netmask, gateway netip.Addr) string {
	return fmt.Sprintf("AT+NSET=%s,%s,%s", ip, netmask, gateway)
}

// DNSServers renders AT+DNSSET. An invalid secondary address is omitted.
func DNSServers(primary netip.Addr, secondary netip.Addr) string {
	if !secondary.IsValid() {
		return fmt.Sprintf("AT+DNSSET=%s", primary)
	}

	return fmt.Sprintf("AT+DNSSET=%s,%s", primary, secondary)
}

// DNSLookup renders AT+DNSLOOKUP.
func DNSLookup(host string) string {
	return "AT+DNSLOOKUP=" + Escape(host)
}

// TimeSync renders AT+NTIMESYNC. interval 0 requests a one-shot sync,
// otherwise the module resyncs every interval seconds.
func TimeSync(server netip.Addr, timeoutSec uint8, intervalSec uint32) string {
	if intervalSec == 0 {
		return fmt.Sprintf("AT+NTIMESYNC=1,%s,%d,0", server, timeoutSec)
	}

	return fmt.Sprintf("AT+NTIMESYNC=1,%s,%d,1,%d", server, timeoutSec, intervalSec)
}

// SaveProfile renders AT&W.
func SaveProfile(n uint8) string {
	return fmt.Sprintf("AT&W%d", n)
}

// LoadProfile renders ATZ.
func LoadProfile(n uint8) string {
	return fmt.Sprintf("ATZ%d", n)
}

// SetDefaultProfile renders AT&Y.
func SetDefaultProfile(n uint8) string {
	return fmt.Sprintf("AT&Y%d", n)
}

// SetParam renders ATS.
func SetParam(p Param, value uint16) string {
	return fmt.Sprintf("ATS%d=%d", p, value)
}

// SetNCMParam renders AT+NCMAUTOCONF.
func SetNCMParam(p NCMParam, value uint16) string {
	return fmt.Sprintf("AT+NCMAUTOCONF=%d,%d", p, value)
}

// ConnectTCP renders AT+NCTCP.
func ConnectTCP(ip netip.Addr, port uint16) string {
	return fmt.Sprintf("AT+NCTCP=%s,%d", ip, port)
}

// ConnectUDP renders AT+NCUDP. localPort 0 lets the module pick a port.
func ConnectUDP(ip netip.Addr, port uint16, localPort uint16) string {
	if localPort == 0 {
		return fmt.Sprintf("AT+NCUDP=%s,%d", ip, port)
	}

	return fmt.Sprintf("AT+NCUDP=%s,%d,%d", ip, port, localPort)
}

// ListenUDP renders AT+NSUDP.
func ListenUDP(port uint16) string {
	return fmt.Sprintf("AT+NSUDP=%d", port)
}

// ListenTCP renders AT+NSTCP.
func ListenTCP(port uint16) string {
	return fmt.Sprintf("AT+NSTCP=%d", port)
}

// CloseConn renders AT+NCLOSE.
func CloseConn(cid CID) string {
	return "AT+NCLOSE=" + cid.String()
}

// SSLOpen renders AT+SSLOPEN, starting a TLS handshake on cid anchored by
// the named CA certificate. The name is escaped like in CertAdd.
func SSLOpen(cid CID, certName string) string {
	return fmt.Sprintf("AT+SSLOPEN=%s,%s", cid, Escape(certName))
}

// CertAdd renders AT+TCERTADD for a binary (DER) certificate of size bytes.
func CertAdd(name string, size int, storage Storage) string {
	return fmt.Sprintf("AT+TCERTADD=%s,0,%d,%d", Escape(name), size, storage)
}

// CertDelete renders AT+TCERTDEL.
func CertDelete(name string) string {
	return "AT+TCERTDEL=" + Escape(name)
}

// AutoAssociate renders AT+WAUTO. An empty bssid matches any access point.
func AutoAssociate(mode WirelessMode, ssid string, bssid string, channel uint8) string {
	return fmt.Sprintf("AT+WAUTO=%d,%s,%s,%d", mode, Quote(ssid), Escape(bssid), channel)
}

// AutoConnectClient renders AT+NAUTO for a client connection. host is an IP
// address or a hostname resolved by the module (firmware 2.5.1 or later).
func AutoConnectClient(host string, port uint16, proto Protocol) string {
	return fmt.Sprintf("AT+NAUTO=0,%d,%s,%d", proto, Escape(host), port)
}

// AutoConnectServer renders AT+NAUTO for a listening connection.
func AutoConnectServer(port uint16, proto Protocol) string {
	return fmt.Sprintf("AT+NAUTO=1,%d,,%d", proto, port)
}

// NCMAuto renders AT+NCMAUTO. associateOnly selects association level
// operation, persist folds the settings into the current profile.
func NCMAuto(mode NCMMode, enable bool, associateOnly bool, persist bool) string {
	return "AT+NCMAUTO=" + strconv.Itoa(int(mode)) + "," +
		strconv.Itoa(boolDigit(enable)) + "," +
		strconv.Itoa(boolDigit(!associateOnly)) + "," +
		strconv.Itoa(boolDigit(persist))
}
