package config

// Default network endpoints
const (
	// SigmaStudio's TCP/IP channel connects to this port by default
	DEFAULT_BRIDGE_PORT = 8087

	// Admin REST API and /metrics
	DEFAULT_ADMIN_PORT = 8088

	DEFAULT_BRIDGE_ADDRESS = "0.0.0.0"
	LOCALHOST_ADDRESS      = "127.0.0.1"
)

// Bridge limits
const (
	// Upper bound for one write payload; program downloads stay far below it.
	DEFAULT_MAX_PAYLOAD_BYTES = 16 * 1024 * 1024

	// Envelopes queued between connections and the DSP worker
	DEFAULT_QUEUE_SIZE = 64
)

// Unknown command policies
const (
	UnknownCommandsIgnore = "ignore"
	UnknownCommandsClose  = "close"
)

// Bus protocols
const (
	ProtocolI2C    = "i2c"
	ProtocolSPI    = "spi"
	ProtocolMemory = "memory"
)

// DSP families
const (
	DspTypeADAU14xx = "adau14xx"
	DspTypeADAU1701 = "adau1701"
)

// Pin modes
const (
	PinModeInput  = "input"
	PinModeOutput = "output"
)

const (
	DEFAULT_SPI_SPEED_HZ = 16_000_000
	DEFAULT_I2C_ADDRESS  = 0x3B
)

// Environment overrides
const (
	EnvLogLevel    = "DSPBRIDGE_LOG_LEVEL"
	EnvDspProtocol = "DSPBRIDGE_DSP_PROTOCOL"
)

// Port validation constants
const (
	MIN_PORT = 1
	MAX_PORT = 65535
)

// IsValidPort checks if a port number is within valid range
func IsValidPort(port int) bool {
	return port >= MIN_PORT && port <= MAX_PORT
}
