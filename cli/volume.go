package cli

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/dsp"
)

var (
	volumeAdjust  bool
	volumeDspType string
)

var volumeCmd = &cobra.Command{
	Use:   "volume <address> <db>",
	Short: "Set or adjust a volume register in dB",
	Long: `Set the volume parameter at <address> to <db>, or with --adjust change it
by <db> relative to its current value. The stored gain never exceeds unity.

The parameter format depends on the chip, pass --type to match the bridge.

Examples:
  dspbridge volume 0x0024 -12
  dspbridge volume 0x0024 -- -3 --adjust
  dspbridge volume 0x0024 -6 --type adau1701`,
	Args: cobra.ExactArgs(2),
	RunE: runVolume,
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeAdjust, "adjust", false, "adjust relative to the current value")
	volumeCmd.Flags().StringVarP(&volumeDspType, "type", "t", config.DspTypeADAU14xx, "dsp family (adau14xx, adau1701)")
	rootCmd.AddCommand(volumeCmd)
}

func runVolume(cmd *cobra.Command, args []string) error {
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	db, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errors.New(ErrInvalidArgument, fmt.Sprintf("invalid dB value %q", args[1]), err)
	}
	if err := dsp.ValidateDB(db); err != nil {
		return err
	}
	family, err := dsp.NewFamily(volumeDspType)
	if err != nil {
		return err
	}

	c, err := dial(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	current := 1.0
	if volumeAdjust {
		raw, err := c.Read(cmd.Context(), address, dsp.ParameterSize)
		if err != nil {
			return err
		}
		current = family.DecodeFloat(raw)
	}

	linear, err := nextVolume(current, db, volumeAdjust)
	if err != nil {
		return err
	}
	if err := c.Write(cmd.Context(), address, family.EncodeFloat(linear)); err != nil {
		return err
	}

	result := dsp.LinearToDB(linear)
	if math.IsInf(result, -1) {
		printSuccess("Volume at 0x%04x muted", address)
		return nil
	}
	printSuccess("Volume at 0x%04x is now %.2f dB", address, result)
	return nil
}

// nextVolume returns the linear gain to store, clamped to [0, 1].
func nextVolume(current, db float64, adjust bool) (float64, error) {
	if err := dsp.ValidateDB(db); err != nil {
		return 0, err
	}
	if adjust {
		return dsp.Clamp(current*dsp.DBToLinear(db), 0, 1), nil
	}
	return dsp.Clamp(dsp.DBToLinear(db), 0, 1), nil
}
