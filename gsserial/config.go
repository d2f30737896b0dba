package gsserial

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-gswifi/logger"
)

const (
	// DefaultBaudRate is the factory UART speed of the module.
	DefaultBaudRate = 9600
	// DefaultPollInterval is the read timeout of one port read.
	DefaultPollInterval = 20 * time.Millisecond
	// DefaultDrainTimeout is the silence that ends the drain of a late reply.
	DefaultDrainTimeout = 200 * time.Millisecond
	// DefaultEventQueueSize is the number of events kept between two calls to
	// ReadBufferedEvent. The oldest event is dropped when full.
	DefaultEventQueueSize = 64

	MinPollInterval = time.Millisecond
	MaxPollInterval = time.Second
)

// Config holds the configuration of a serial Transport.
type Config struct {
	portName       string
	baudRate       int
	pollInterval   time.Duration
	drainTimeout   time.Duration
	eventQueueSize int
	logger         logger.Logger
}

// NewConfig creates a configuration for the serial port portName, e.g.
// "/dev/ttyUSB0" or "COM3".
func NewConfig(portName string, opts ...Option) (*Config, error) {
	if portName == "" {
		return nil, errors.New("gsserial: port name is empty")
	}

	cfg := &Config{
		portName:       portName,
		baudRate:       DefaultBaudRate,
		pollInterval:   DefaultPollInterval,
		drainTimeout:   DefaultDrainTimeout,
		eventQueueSize: DefaultEventQueueSize,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PortName returns the name of the serial port.
func (cfg *Config) PortName() string { return cfg.portName }

// BaudRate returns the line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// PollInterval returns the read timeout of one port read.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// DrainTimeout returns the silence that ends the drain of a late reply.
func (cfg *Config) DrainTimeout() time.Duration { return cfg.drainTimeout }

// EventQueueSize returns the capacity of the event buffer.
func (cfg *Config) EventQueueSize() int { return cfg.eventQueueSize }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the line speed.
func WithBaudRate(rate int) Option {
	return optFunc(func(cfg *Config) error {
		if rate <= 0 {
			return fmt.Errorf("gsserial: invalid baud rate %d", rate)
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithPollInterval sets the read timeout of one port read.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("gsserial: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithDrainTimeout sets the silence that ends the drain of a late reply.
func WithDrainTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("gsserial: invalid drain timeout %v", d)
		}
		cfg.drainTimeout = d

		return nil
	})
}

// WithEventQueueSize sets the capacity of the event buffer.
func WithEventQueueSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size <= 0 {
			return fmt.Errorf("gsserial: invalid event queue size %d", size)
		}
		cfg.eventQueueSize = size

		return nil
	})
}

// WithLogger sets the logger of the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("gsserial: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
