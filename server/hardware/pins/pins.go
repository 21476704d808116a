// Package pins manages the GPIO lines wired to a DSP (reset, mute, buttons).
package pins

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

var (
	ErrPinNotFound  = errors.MustNewCode("pins.not_found")
	ErrNotAnOutput  = errors.MustNewCode("pins.not_output")
	ErrPinSetup     = errors.MustNewCode("pins.setup_failed")
	ErrPinOperation = errors.MustNewCode("pins.operation_failed")
)

// Mode is either Input or Output.
type Mode interface {
	isMode()
}

// Input is a line read by the host.
//
// With PullUp set the line idles high and is active when pulled low;
// ActiveState is only consulted for floating inputs.
type Input struct {
	PullUp      bool
	ActiveState bool
	Debounce    time.Duration
}

// Output is a line driven by the host.
type Output struct {
	InitialValue bool
	ActiveHigh   bool
}

func (Input) isMode()  {}
func (Output) isMode() {}

// Opener resolves a GPIO number to a periph pin.
type Opener func(number int) (gpio.PinIO, error)

// HostOpener looks pins up in the periph registry. host.Init must have run.
func HostOpener(number int) (gpio.PinIO, error) {
	p := gpioreg.ByName(strconv.Itoa(number))
	if p == nil {
		return nil, errors.New(ErrPinNotFound, fmt.Sprintf("gpio %d not present", number), nil)
	}
	return p, nil
}

// Pin is a named, numbered control line.
type Pin struct {
	Name   string
	Number int
	Mode   Mode

	mu         sync.Mutex
	line       gpio.PinIO
	active     bool
	lastChange time.Time
	now        func() time.Time
}

// Open configures the line for its mode. Outputs are driven to their initial
// value right away.
func Open(name string, number int, mode Mode, opener Opener) (*Pin, error) {
	line, err := opener(number)
	if err != nil {
		return nil, errors.New(ErrPinSetup, "failed to open gpio", err).AddContext("pin", name)
	}

	p := &Pin{Name: name, Number: number, Mode: mode, line: line, now: time.Now}

	switch m := mode.(type) {
	case Output:
		if err := line.Out(p.level(m.InitialValue)); err != nil {
			return nil, errors.New(ErrPinSetup, "failed to configure output", err).AddContext("pin", name)
		}
		p.active = m.InitialValue
	case Input:
		pull := gpio.Float
		if m.PullUp {
			pull = gpio.PullUp
		}
		if err := line.In(pull, gpio.NoEdge); err != nil {
			return nil, errors.New(ErrPinSetup, "failed to configure input", err).AddContext("pin", name)
		}
		p.active = p.isActive(line.Read())
	default:
		return nil, errors.New(ErrPinSetup, fmt.Sprintf("unsupported pin mode %T", mode), nil).AddContext("pin", name)
	}

	return p, nil
}

// level maps the logical state of an output to an electrical level.
func (p *Pin) level(active bool) gpio.Level {
	out, _ := p.Mode.(Output)
	return gpio.Level(active == out.ActiveHigh)
}

func (p *Pin) isActive(l gpio.Level) bool {
	in, _ := p.Mode.(Input)
	if in.PullUp {
		return l == gpio.Low
	}
	return bool(l) == in.ActiveState
}

// On drives an output to its active level.
func (p *Pin) On() error {
	return p.set(true)
}

// Off drives an output to its inactive level.
func (p *Pin) Off() error {
	return p.set(false)
}

// Set drives an output to the given logical state.
func (p *Pin) Set(active bool) error {
	return p.set(active)
}

func (p *Pin) set(active bool) error {
	if _, ok := p.Mode.(Output); !ok {
		return errors.New(ErrNotAnOutput, "pin is not an output", nil).AddContext("pin", p.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.line.Out(p.level(active)); err != nil {
		return errors.New(ErrPinOperation, "failed to drive pin", err).AddContext("pin", p.Name)
	}
	p.active = active
	return nil
}

// Value reports the logical state. For inputs, changes shorter than the
// debounce window are ignored.
func (p *Pin) Value() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.Mode.(Input)
	if !ok {
		return p.active
	}

	raw := p.isActive(p.line.Read())
	if raw == p.active {
		return p.active
	}
	now := p.now()
	if in.Debounce > 0 && now.Sub(p.lastChange) < in.Debounce {
		return p.active
	}
	p.active = raw
	p.lastChange = now
	return p.active
}

// IsOutput reports whether the pin can be driven.
func (p *Pin) IsOutput() bool {
	_, ok := p.Mode.(Output)
	return ok
}

// Set is an ordered collection of pins with unique names.
type Set struct {
	mu   sync.RWMutex
	pins []*Pin
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Get finds a pin by name.
func (s *Set) Get(name string) (*Pin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pins {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Has reports whether a pin with that name exists.
func (s *Set) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Add appends p unless a pin with the same name exists. It reports whether
// the pin was added.
func (s *Set) Add(p *Pin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.pins {
		if existing.Name == p.Name {
			return false
		}
	}
	s.pins = append(s.pins, p)
	return true
}

// Remove drops the pin with that name, if any.
func (s *Set) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pins {
		if p.Name == name {
			s.pins = append(s.pins[:i], s.pins[i+1:]...)
			return true
		}
	}
	return false
}

// All returns the pins in insertion order.
func (s *Set) All() []*Pin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Pin(nil), s.pins...)
}
