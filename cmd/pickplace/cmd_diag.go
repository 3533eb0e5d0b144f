package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/pickplace/internal/clock"
	"github.com/sweeney/pickplace/internal/diag"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Bench-test the keypad, ranger, gripper, buzzer and buttons",
	Long: `Run the diagnostics menu without moving the rail. The rail is braked on
entry. Choose a test from the keypad; the stop button reprints the menu.`,
	RunE: runDiag,
}

func init() {
	rootCmd.AddCommand(diagCmd)
}

func runDiag(cmd *cobra.Command, args []string) error {
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

	if err := m.hw.Rail.Init(); err != nil {
		return fmt.Errorf("brake rail: %w", err)
	}

	bcfg := diag.DefaultConfig()
	bcfg.Tick = cfg.Timing.Tick
	bcfg.GripperOpen = cfg.Gripper.Open
	bcfg.GripperClosed = cfg.Gripper.Closed
	bcfg.GripperMove = cfg.Gripper.MoveTime

	bench := diag.New(benchHardware(m.hw), bcfg, clk, cmd.OutOrStdout(), logger.With().Str("component", "diag").Logger())
	if err := bench.Init(); err != nil {
		return fmt.Errorf("init bench: %w", err)
	}
	defer m.hw.Buzzer.Off()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Timing.Tick)
	defer ticker.Stop()
	return bench.Run(ctx, ticker.C)
}
