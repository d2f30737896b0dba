package gsmodule

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-gswifi/logger"
)

// Default timeouts. The module is authoritative for its own timers; these
// only bound how long the host waits for a reply.
const (
	DefaultCommandTimeout   = 2 * time.Second
	DefaultAssociateTimeout = 15 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultTLSTimeout       = 20 * time.Second
	DefaultCertTimeout      = 10 * time.Second
	DefaultDNSTimeout       = 10 * time.Second

	// DefaultNCMRetryPeriod matches the module's default L4 retry period (50 x 10 ms).
	DefaultNCMRetryPeriod = 500 * time.Millisecond

	// DefaultAssociateRetries matches the module's default scan retry count.
	DefaultAssociateRetries = 10
	// DefaultConnectRetries matches the module's default L4 retry count.
	DefaultConnectRetries = 20

	MaxTimeout = 5 * time.Minute
)

// ModuleConfig holds the host-side configuration of a Module.
type ModuleConfig struct {
	commandTimeout   time.Duration
	associateTimeout time.Duration
	connectTimeout   time.Duration
	tlsTimeout       time.Duration
	certTimeout      time.Duration
	dnsTimeout       time.Duration

	retryPolicy    RetryPolicy
	ncmRetryPeriod time.Duration

	logger logger.Logger
}

// NewModuleConfig creates a configuration with defaults, then applies opts in order.
func NewModuleConfig(opts ...ModuleOption) (*ModuleConfig, error) {
	cfg := &ModuleConfig{
		commandTimeout:   DefaultCommandTimeout,
		associateTimeout: DefaultAssociateTimeout,
		connectTimeout:   DefaultConnectTimeout,
		tlsTimeout:       DefaultTLSTimeout,
		certTimeout:      DefaultCertTimeout,
		dnsTimeout:       DefaultDNSTimeout,
		retryPolicy: RetryPolicy{
			Associate: DefaultAssociateRetries,
			Connect:   DefaultConnectRetries,
			Zero:      ZeroRetryOnce,
		},
		ncmRetryPeriod: DefaultNCMRetryPeriod,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// CommandTimeout returns the reply timeout of plain configuration commands.
func (cfg *ModuleConfig) CommandTimeout() time.Duration { return cfg.commandTimeout }

// AssociateTimeout returns the reply timeout of an association request.
func (cfg *ModuleConfig) AssociateTimeout() time.Duration { return cfg.associateTimeout }

// ConnectTimeout returns the reply timeout of connect and listen requests.
func (cfg *ModuleConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// TLSTimeout returns the reply timeout of a TLS handshake.
func (cfg *ModuleConfig) TLSTimeout() time.Duration { return cfg.tlsTimeout }

// CertTimeout returns the timeout of a certificate upload.
func (cfg *ModuleConfig) CertTimeout() time.Duration { return cfg.certTimeout }

// DNSTimeout returns the reply timeout of a DNS lookup.
func (cfg *ModuleConfig) DNSTimeout() time.Duration { return cfg.dnsTimeout }

// RetryPolicy returns the NCM retry bounds.
func (cfg *ModuleConfig) RetryPolicy() RetryPolicy { return cfg.retryPolicy }

// NCMRetryPeriod returns the delay between two NCM steps in NCM.Run.
func (cfg *ModuleConfig) NCMRetryPeriod() time.Duration { return cfg.ncmRetryPeriod }

// GetLogger returns the configured logger.
func (cfg *ModuleConfig) GetLogger() logger.Logger { return cfg.logger }

// ModuleOption is a functional option for configuring a ModuleConfig.
type ModuleOption interface {
	apply(*ModuleConfig) error
}

type moduleOptFunc func(*ModuleConfig) error

func (f moduleOptFunc) apply(cfg *ModuleConfig) error { return f(cfg) }

func checkTimeout(name string, d time.Duration) error {
	if d <= 0 || d > MaxTimeout {
		return fmt.Errorf("gsmodule: %s timeout %v out of range (0, %v]", name, d, MaxTimeout)
	}

	return nil
}

// WithCommandTimeout sets the reply timeout of plain configuration commands.
func WithCommandTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("command", d); err != nil {
			return err
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithAssociateTimeout sets the reply timeout of an association request.
func WithAssociateTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("associate", d); err != nil {
			return err
		}
		cfg.associateTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the reply timeout of connect and listen requests.
func WithConnectTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("connect", d); err != nil {
			return err
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithTLSTimeout sets the reply timeout of a TLS handshake.
func WithTLSTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("tls", d); err != nil {
			return err
		}
		cfg.tlsTimeout = d

		return nil
	})
}

// WithCertTimeout sets the timeout of a certificate upload.
func WithCertTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("cert", d); err != nil {
			return err
		}
		cfg.certTimeout = d

		return nil
	})
}

// WithDNSTimeout sets the reply timeout of a DNS lookup.
func WithDNSTimeout(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("dns", d); err != nil {
			return err
		}
		cfg.dnsTimeout = d

		return nil
	})
}

// WithRetryPolicy sets the NCM retry bounds.
func WithRetryPolicy(p RetryPolicy) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if p.Zero != ZeroRetryOnce && p.Zero != ZeroRetryUnlimited {
			return fmt.Errorf("gsmodule: unknown zero retry policy %d", p.Zero)
		}
		cfg.retryPolicy = p

		return nil
	})
}

// WithNCMRetryPeriod sets the delay between two NCM steps in NCM.Run.
func WithNCMRetryPeriod(d time.Duration) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if err := checkTimeout("ncm retry period", d); err != nil {
			return err
		}
		cfg.ncmRetryPeriod = d

		return nil
	})
}

// WithLogger sets the logger of the module.
func WithLogger(l logger.Logger) ModuleOption {
	return moduleOptFunc(func(cfg *ModuleConfig) error {
		if l == nil {
			return errors.New("gsmodule: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
