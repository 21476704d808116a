package pins

import (
	"fmt"
	"testing"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func testOpener(lines map[int]*gpiotest.Pin) Opener {
	return func(number int) (gpio.PinIO, error) {
		if l, ok := lines[number]; ok {
			return l, nil
		}
		l := &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", number), Num: number}
		lines[number] = l
		return l, nil
	}
}

func TestOutputActiveLow(t *testing.T) {
	lines := map[int]*gpiotest.Pin{}
	p, err := Open("reset", 17, Output{InitialValue: false, ActiveHigh: false}, testOpener(lines))
	require.NoError(t, err)

	assert.Equal(t, gpio.High, lines[17].L, "inactive active-low output idles high")
	assert.False(t, p.Value())

	require.NoError(t, p.On())
	assert.Equal(t, gpio.Low, lines[17].L)
	assert.True(t, p.Value())

	require.NoError(t, p.Off())
	assert.Equal(t, gpio.High, lines[17].L)
}

func TestOutputActiveHighInitialOn(t *testing.T) {
	lines := map[int]*gpiotest.Pin{}
	p, err := Open("mute", 22, Output{InitialValue: true, ActiveHigh: true}, testOpener(lines))
	require.NoError(t, err)
	assert.Equal(t, gpio.High, lines[22].L)
	assert.True(t, p.IsOutput())
}

func TestInputPullUpIsActiveLow(t *testing.T) {
	lines := map[int]*gpiotest.Pin{27: {N: "GPIO27", Num: 27, L: gpio.High}}
	p, err := Open("button", 27, Input{PullUp: true}, testOpener(lines))
	require.NoError(t, err)

	assert.Equal(t, gpio.PullUp, lines[27].P)
	assert.False(t, p.Value())
	lines[27].L = gpio.Low
	assert.True(t, p.Value())

	err = p.On()
	assert.True(t, errors.HasCode(err, ErrNotAnOutput))
}

func TestInputDebounce(t *testing.T) {
	lines := map[int]*gpiotest.Pin{5: {N: "GPIO5", Num: 5, L: gpio.Low}}
	p, err := Open("sense", 5, Input{ActiveState: true, Debounce: 50 * time.Millisecond}, testOpener(lines))
	require.NoError(t, err)

	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	lines[5].L = gpio.High
	assert.True(t, p.Value(), "first change is accepted")

	lines[5].L = gpio.Low
	clock = clock.Add(10 * time.Millisecond)
	assert.True(t, p.Value(), "bounce inside the window is ignored")

	clock = clock.Add(60 * time.Millisecond)
	assert.False(t, p.Value())
}

func TestOpenFailure(t *testing.T) {
	_, err := Open("x", 1, Output{}, func(int) (gpio.PinIO, error) { return nil, fmt.Errorf("no such pin") })
	assert.True(t, errors.HasCode(err, ErrPinSetup))
}

func TestSet(t *testing.T) {
	s := NewSet()
	lines := map[int]*gpiotest.Pin{}
	a, _ := Open("reset", 1, Output{}, testOpener(lines))
	b, _ := Open("mute", 2, Output{}, testOpener(lines))
	dup, _ := Open("reset", 3, Output{}, testOpener(lines))

	assert.True(t, s.Add(a))
	assert.True(t, s.Add(b))
	assert.False(t, s.Add(dup), "duplicate names are ignored")

	got, ok := s.Get("reset")
	require.True(t, ok)
	assert.Equal(t, 1, got.Number)
	assert.True(t, s.Has("mute"))

	assert.True(t, s.Remove("reset"))
	assert.False(t, s.Remove("reset"))
	assert.Equal(t, []*Pin{b}, s.All())
}

func TestHostOpenerUnknownLine(t *testing.T) {
	_, err := HostOpener(987654)
	assert.True(t, errors.HasCode(err, ErrPinNotFound))
}
