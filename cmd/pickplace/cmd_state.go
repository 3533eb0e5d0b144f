package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/control"
	"github.com/sweeney/pickplace/internal/device"
	"github.com/sweeney/pickplace/internal/diag"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print every button and one distance reading, then exit",
	RunE:  runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	clk := clock.System{}
	m, err := openMachine(cfg, clk, os.Stdin, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	line, err := readState(m.hw, clk)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
	return nil
}

// readState samples the buttons and ranger once and formats them.
func readState(hw control.Hardware, clk clock.Clock) (string, error) {
	now := clk.Now()
	buttons := []*device.Button{hw.Stop, hw.Home, hw.Forward, hw.Reverse, hw.Grip, hw.Limit}
	parts := make([]string, 0, len(buttons)+1)
	for _, b := range buttons {
		if err := b.Init(now); err != nil {
			return "", fmt.Errorf("read buttons: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(b.Name), pressedString(b.IsPressed())))
	}

	cm := hw.Ranger.MeasureDistanceCm()
	if cm < 0 {
		parts = append(parts, "DISTANCE: ERROR")
	} else {
		parts = append(parts, fmt.Sprintf("DISTANCE: %.1f cm [%s]", cm, diag.Band(cm)))
	}
	return strings.Join(parts, ", "), nil
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
