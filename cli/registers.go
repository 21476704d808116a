package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gear6io/dspbridge/pkg/errors"
)

var readCmd = &cobra.Command{
	Use:   "read <address> <length>",
	Short: "Read registers through the bridge",
	Long: `Read <length> bytes starting at <address> and print a hex dump.

Addresses accept decimal, 0x hex or 0o octal notation.

Examples:
  dspbridge read 0x0010 4
  dspbridge read 0xF890 2 --addr 192.168.1.20:8087`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write <address> <hex bytes>",
	Short: "Write registers through the bridge",
	Long: `Write raw bytes starting at <address>. Bytes are given as hex, spaces and
colons are ignored.

Examples:
  dspbridge write 0x0010 00800000
  dspbridge write 0x0010 "00 80 00 00 01 00 00 00"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWrite(false),
}

var safeloadCmd = &cobra.Command{
	Use:   "safeload <address> <hex bytes>",
	Short: "Safeload up to five parameter words",
	Long: `Update up to five consecutive 4-byte parameters atomically.

The bridge gives no acknowledgment; a payload that is not 1 to 5 whole words
is rejected and logged on the bridge side.

Example:
  dspbridge safeload 0x0100 00800000 00400000`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWrite(true),
}

func init() {
	rootCmd.AddCommand(readCmd, writeCmd, safeloadCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	length, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return errors.New(ErrInvalidArgument, fmt.Sprintf("invalid length %q", args[1]), err)
	}

	c, err := dial(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := c.Read(cmd.Context(), address, uint32(length))
	if err != nil {
		return err
	}
	return renderHexDump(address, data)
}

func runWrite(safeload bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		data, err := parseHex(strings.Join(args[1:], ""))
		if err != nil {
			return err
		}
		if safeload && (len(data) == 0 || len(data)%4 != 0 || len(data) > 20) {
			return errors.New(ErrInvalidArgument, fmt.Sprintf("safeload needs 1 to 5 whole 4-byte words, got %d bytes", len(data)), nil)
		}

		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if safeload {
			err = c.Safeload(cmd.Context(), address, data)
		} else {
			err = c.Write(cmd.Context(), address, data)
		}
		if err != nil {
			return err
		}

		kind := "Wrote"
		if safeload {
			kind = "Safeloaded"
		}
		printSuccess("%s %d bytes at 0x%04x", kind, len(data), address)
		return nil
	}
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, errors.New(ErrInvalidArgument, fmt.Sprintf("invalid register address %q", s), err)
	}
	return uint16(v), nil
}

func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.New(ErrInvalidArgument, fmt.Sprintf("invalid hex data %q", s), err)
	}
	return data, nil
}
