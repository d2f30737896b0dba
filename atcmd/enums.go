package atcmd

import (
	"fmt"
	"strconv"
	"strings"
)

// CID is a connection identifier assigned by the module.
type CID uint8

// InvalidCID denotes a failed or absent connection.
const InvalidCID CID = 0xFF

// MaxCID is the largest identifier the module hands out (one hex digit).
const MaxCID CID = 0x0F

// IsValid reports whether the cid is a module-assignable identifier.
func (c CID) IsValid() bool { return c <= MaxCID }

// String returns the single hex digit used on the wire, or "invalid".
func (c CID) String() string {
	if !c.IsValid() {
		return "invalid"
	}

	return strconv.FormatUint(uint64(c), 16)
}

// ParseCID parses the single hex digit the module uses for connection ids.
func ParseCID(s string) (CID, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 1 {
		return InvalidCID, false
	}

	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return InvalidCID, false
	}

	return CID(v), true
}

// Auth is the WEP authentication mode.
type Auth uint8

const (
	AuthNone   Auth = 0
	AuthOpen   Auth = 1
	AuthShared Auth = 2
)

func (a Auth) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthOpen:
		return "open"
	case AuthShared:
		return "shared"
	default:
		return fmt.Sprintf("auth(%d)", uint8(a))
	}
}

// Security is a bitmask of the security modes the module may use.
// SecurityAuto lets the module autodetect.
type Security uint8

const (
	SecurityAuto        Security = 0
	SecurityOpen        Security = 1
	SecurityWEP         Security = 2
	SecurityWPA1PSK     Security = 4
	SecurityWPA2PSK     Security = 8
	SecurityWPA1Ent     Security = 16
	SecurityWPA2Ent     Security = 32
	SecurityWPA2AESTKIP Security = 64

	SecurityWPAPSK        = SecurityWPA1PSK | SecurityWPA2PSK
	SecurityWPAEnterprise = SecurityWPA1Ent | SecurityWPA2Ent
)

// Has reports whether every bit of other is set in s.
func (s Security) Has(other Security) bool { return s&other == other }

// WirelessMode is the 802.11 operating mode.
type WirelessMode uint8

const (
	ModeInfrastructure WirelessMode = 0
	ModeAdhoc          WirelessMode = 1
	ModeLimitedAP      WirelessMode = 2
)

func (m WirelessMode) String() string {
	switch m {
	case ModeInfrastructure:
		return "infrastructure"
	case ModeAdhoc:
		return "adhoc"
	case ModeLimitedAP:
		return "limited-ap"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Protocol is a transport-layer protocol.
type Protocol uint8

const (
	ProtocolUDP Protocol = 0
	ProtocolTCP Protocol = 1
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// ParseProtocol accepts "tcp" or "udp", case-insensitive.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	default:
		return ProtocolTCP, fmt.Errorf("atcmd: unknown protocol %q", s)
	}
}

// NCMMode selects the role of the network connection manager.
type NCMMode uint8

const (
	NCMStation   NCMMode = 0
	NCMLimitedAP NCMMode = 1
)

func (m NCMMode) String() string {
	if m == NCMLimitedAP {
		return "limited-ap"
	}

	return "station"
}

// Storage is where a certificate is kept on the module.
type Storage uint8

const (
	StorageFlash    Storage = 0
	StorageVolatile Storage = 1
)

func (s Storage) String() string {
	if s == StorageVolatile {
		return "volatile"
	}

	return "flash"
}

// Param identifies an ATS timing register. Units are 10 ms unless noted.
type Param uint8

const (
	// ParamAutoConnectTimeout bounds network connection setup in auto connect mode. Default 1000.
	ParamAutoConnectTimeout Param = 0
	// ParamAutoAssociateTimeout bounds association in auto connect mode. Default 500.
	ParamAutoAssociateTimeout Param = 1
	// ParamTCPConnectTimeout bounds a TCP client connect; 0 uses the stack default (75 s). Default 500.
	ParamTCPConnectTimeout Param = 2
	// ParamAssociationRetryCount is not supported by current firmware.
	ParamAssociationRetryCount Param = 3
	// ParamNagleWaitTime bounds buffering of serial data in auto connect mode. Default 10.
	ParamNagleWaitTime Param = 4
	// ParamScanTime is the per-channel scan time in milliseconds. Default 150.
	ParamScanTime Param = 5
	// ParamL4RetryPeriod is the delay between NCM L4 connection retries. Default 50.
	ParamL4RetryPeriod Param = 6
	// ParamL4RetryCount is the NCM L4 connection retry count. Default 20.
	ParamL4RetryCount Param = 7
)

// IsValid reports whether p names a defined register.
func (p Param) IsValid() bool { return p <= ParamL4RetryCount }

// NCMParam identifies a network connection manager register. Units are ms or counts.
type NCMParam uint8

const (
	NCMCPUWait                     NCMParam = 0
	NCMPowerSave                   NCMParam = 1 // not supported by hardware
	NCMKnownChannelScanPeriod      NCMParam = 2
	NCMSpecificChannelScanPeriod   NCMParam = 3 // not supported by hardware
	NCMAllChannelScanPeriod        NCMParam = 4
	NCML3ConnectPeriod             NCMParam = 5
	NCMKnownChannelScanRetryCount  NCMParam = 8
	NCMSpecificChannelScanRetryCnt NCMParam = 9 // not supported by hardware
	NCMAllChannelScanRetryCount    NCMParam = 10
	NCML3ConnectRetryCount         NCMParam = 11
)

// IsValid reports whether p names a defined register (0-5 or 8-11).
func (p NCMParam) IsValid() bool {
	return p <= NCML3ConnectPeriod || (p >= NCMKnownChannelScanRetryCount && p <= NCML3ConnectRetryCount)
}
