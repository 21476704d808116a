// Package hardware opens the bus and GPIO lines a configuration describes.
package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/hardware/bus"
	"github.com/gear6io/dspbridge/server/hardware/pins"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

var (
	ErrHostInit = errors.MustNewCode("hardware.host_init_failed")
)

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// Hardware is everything the DSP needs from the host.
type Hardware struct {
	Bus  bus.Bus
	Pins *pins.Set
}

// Open connects to the chip and claims its pins. The memory protocol opens
// a simulated register space with simulated pins, no drivers involved.
func Open(cfg config.DspConfig, logger zerolog.Logger) (*Hardware, error) {
	b, opener, err := openBus(cfg)
	if err != nil {
		return nil, err
	}

	set := pins.NewSet()
	for _, name := range cfg.PinNames() {
		pc := cfg.Pins[name]
		p, err := pins.Open(name, pc.Number, PinMode(pc), opener)
		if err != nil {
			b.Close()
			return nil, err
		}
		set.Add(p)
		logger.Info().Str("pin", name).Int("number", pc.Number).Str("mode", pc.Mode).Msg("Found DSP pin definition")
	}
	if len(cfg.Pins) == 0 {
		logger.Info().Msg("No DSP pin definitions were found in the configuration")
	}

	logger.Info().Str("bus", b.Name()).Msg("Opened DSP bus")
	return &Hardware{Bus: b, Pins: set}, nil
}

func openBus(cfg config.DspConfig) (bus.Bus, pins.Opener, error) {
	switch cfg.Protocol {
	case config.ProtocolMemory:
		return bus.NewMemory(), simulatedOpener(), nil
	case config.ProtocolI2C, config.ProtocolSPI:
	default:
		return nil, nil, errors.New(config.ErrUnsupportedProtocol, fmt.Sprintf("unsupported bus protocol %q", cfg.Protocol), nil)
	}

	if err := initHost(); err != nil {
		return nil, nil, errors.New(ErrHostInit, "failed to load periph host drivers", err)
	}

	if cfg.Protocol == config.ProtocolI2C {
		b, err := bus.OpenI2C(cfg.BusNumber, uint16(cfg.DeviceAddress))
		if err != nil {
			return nil, nil, err
		}
		return b, pins.HostOpener, nil
	}

	speed := cfg.SPISpeedHz
	if speed == 0 {
		speed = config.DEFAULT_SPI_SPEED_HZ
	}
	b, err := bus.OpenSPI(cfg.BusNumber, cfg.DeviceAddress, speed)
	if err != nil {
		return nil, nil, err
	}
	return b, pins.HostOpener, nil
}

func simulatedOpener() pins.Opener {
	return func(number int) (gpio.PinIO, error) {
		return &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", number), Num: number}, nil
	}
}

// PinMode translates a pin definition into its mode variant.
func PinMode(pc config.PinConfig) pins.Mode {
	if pc.Mode == config.PinModeInput {
		return pins.Input{
			PullUp:      pc.PullUp,
			ActiveState: pc.ActiveState,
			Debounce:    time.Duration(pc.BounceTime * float64(time.Second)),
		}
	}
	return pins.Output{InitialValue: pc.InitialState, ActiveHigh: pc.ActiveHigh}
}
