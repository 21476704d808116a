package cli

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/gear6io/dspbridge/server/regcodec"
)

// hexDumpRows lays data out one 4-byte register per row.
func hexDumpRows(address uint16, data []byte) pterm.TableData {
	rows := pterm.TableData{{"Address", "Bytes", "Int32"}}
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		word := data[i:end]

		parts := make([]string, len(word))
		for j, b := range word {
			parts[j] = fmt.Sprintf("%02X", b)
		}

		value := ""
		if len(word) == 4 {
			value = fmt.Sprintf("%d", regcodec.Int32(word, 0))
		}
		rows = append(rows, []string{
			fmt.Sprintf("0x%04X", int(address)+i/4),
			strings.Join(parts, " "),
			value,
		})
	}
	return rows
}

func renderHexDump(address uint16, data []byte) error {
	if len(data) == 0 {
		pterm.Info.Println("No data")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(hexDumpRows(address, data)).Render()
}

func printSuccess(format string, args ...interface{}) {
	pterm.Success.Printfln(format, args...)
}
