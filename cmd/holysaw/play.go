package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/holysaw/holysaw/oto"
	"github.com/holysaw/holysaw/worker"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play FILE...",
	Short: "Render songs and play them on the sound card",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showLevels, _ := cmd.Flags().GetBool("levels")
		stopMs := stopMsFlag(cmd.Flags())
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		w, err := worker.New(worker.WithLogger(logger))
		if err != nil {
			return err
		}
		audioContext, err := oto.NewContext()
		if err != nil {
			return fmt.Errorf("could not acquire oto AudioContext: %w", err)
		}
		defer audioContext.Close()
		for _, filename := range args {
			if err := play(ctx, w, audioContext, filename, stopMs, showLevels); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		return nil
	},
}

func play(ctx context.Context, w *worker.Worker, audioContext *oto.Context, filename string, stopMs *float64, showLevels bool) error {
	song, err := readSong(filename)
	if err != nil {
		return err
	}
	resp := w.Process(ctx, worker.Request{Song: song, StopMs: stopMs, PlayAudio: true, TraceMode: "off"})
	if resp.Action == worker.ActionError {
		return fmt.Errorf("%v: %v", filename, resp.Error)
	}
	logger.Info("playing", "song", song.Name, "samples", resp.Result.Length, "peak", resp.Result.Level.PeakDB.String())
	p := audioContext.Start(resp.Result.Samples)
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-finished:
		}
	}()
	for l := range p.Levels() {
		if showLevels {
			fmt.Fprintf(os.Stderr, "\rpeak %9s  rms %9s", l.PeakDB, l.RMSDB)
		}
	}
	if showLevels {
		fmt.Fprintln(os.Stderr)
	}
	p.Wait()
	return nil
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Float64("stop-ms", 0, "Stop playing at this position in milliseconds")
	playCmd.Flags().BoolP("levels", "l", false, "Show the output level while playing")
}
