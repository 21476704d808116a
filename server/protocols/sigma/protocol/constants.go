package protocol

// Command is the opcode in byte 0 of every header.
type Command byte

// Opcodes of the SigmaStudio TCP/IP channel (ADAU145x flavour)
const (
	CommandWrite        Command = 0x09
	CommandRead         Command = 0x0A
	CommandReadResponse Command = 0x0B
)

// HeaderLength is the size of every request and response header.
const HeaderLength = 14

// StatusSuccess is the only status the bridge ever reports; it has no failure
// signal from the chip side to report otherwise.
const (
	StatusSuccess uint8 = 0
	StatusFailure uint8 = 1
)

// Write header field offsets
const (
	writeOffsetSafeload      = 1
	writeOffsetChannel       = 2
	writeOffsetTotalLength   = 3
	writeOffsetChipAddress   = 7
	writeOffsetPayloadLength = 8
	writeOffsetAddress       = 12
)

// Read request and read response header field offsets
const (
	readOffsetTotalLength = 1
	readOffsetChipAddress = 5
	readOffsetDataLength  = 6
	readOffsetAddress     = 10
	readOffsetStatus      = 12
	readOffsetReserved    = 13
)

var commandNames = map[Command]string{
	CommandWrite:        "Write",
	CommandRead:         "Read",
	CommandReadResponse: "ReadResponse",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Unknown"
}

// IsKnown reports whether c is one of the three opcodes.
func (c Command) IsKnown() bool {
	_, ok := commandNames[c]
	return ok
}
