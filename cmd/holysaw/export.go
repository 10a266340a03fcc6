package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/holysaw/holysaw/report"
	"github.com/holysaw/holysaw/worker"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE...",
	Short: "Render songs to files",
	Long: `Renders the songs and writes the waveform as .wav (-w) or headerless .raw (-r)
and the execution trace (-t) next to each other in the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		wavOut, _ := flags.GetBool("wav")
		rawOut, _ := flags.GetBool("raw")
		traceOut, _ := flags.GetBool("trace")
		if !wavOut && !rawOut && !traceOut {
			wavOut = true
		}
		pcm16 := cfg.Render.PCM16
		if flags.Changed("pcm") {
			pcm16, _ = flags.GetBool("pcm")
		}
		if float, _ := flags.GetBool("float"); float {
			pcm16 = false
		}
		dir := cfg.Render.OutputDir
		if flags.Changed("output") {
			dir, _ = flags.GetString("output")
		}
		traceFormat, traceMode := cfg.Render.TraceFormat, cfg.Render.TraceMode
		if flags.Changed("trace-format") {
			traceFormat, _ = flags.GetString("trace-format")
		}
		if flags.Changed("trace-mode") {
			traceMode, _ = flags.GetString("trace-mode")
		}
		format, err := report.ParseFormat(traceFormat)
		if err != nil {
			return err
		}
		w, err := worker.New(worker.WithLogger(logger), worker.WithTraceFormat(format))
		if err != nil {
			return err
		}
		e := exporter{
			worker: w,
			dir:    dir,
			format: format,
			req: worker.Request{
				StopMs:    stopMsFlag(flags),
				SaveAsWav: wavOut,
				SaveTrace: traceOut,
				Float32:   !pcm16,
				TraceMode: traceMode,
			},
			raw: rawOut,
		}
		var errs []error
		for _, filename := range args {
			if err := e.export(cmd.Context(), filename); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}

type exporter struct {
	worker *worker.Worker
	dir    string
	format report.Format
	req    worker.Request
	raw    bool
}

func (e *exporter) export(ctx context.Context, filename string) error {
	song, err := readSong(filename)
	if err != nil {
		return err
	}
	req := e.req
	req.Song = song
	resp := e.worker.Process(ctx, req)
	if resp.Action == worker.ActionError {
		return fmt.Errorf("%v: %v", filename, resp.Error)
	}
	res := resp.Result
	if res.Recovered > 0 {
		logger.Warn("recovered errors", "song", filename, "count", res.Recovered)
	}
	if e.req.SaveAsWav {
		if err := e.output(filename, ".wav", res.Wav); err != nil {
			return err
		}
	}
	if e.raw {
		raw, err := res.Samples.Raw(!e.req.Float32)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %w", err)
		}
		if err := e.output(filename, ".raw", raw); err != nil {
			return err
		}
	}
	if e.req.SaveTrace {
		if err := e.output(filename, ".trace"+e.format.Extension(), res.Trace); err != nil {
			return err
		}
	}
	return nil
}

func (e *exporter) output(filename, extension string, contents []byte) error {
	dir := e.dir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	name := filepath.Base(filename)
	f := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+extension)
	if err := os.WriteFile(f, contents, 0o644); err != nil {
		return fmt.Errorf("could not write file %v: %w", f, err)
	}
	logger.Info("wrote file", "path", f, "bytes", len(contents))
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().BoolP("wav", "w", false, "Write the waveform as .wav (default when no other output is given)")
	exportCmd.Flags().BoolP("raw", "r", false, "Write the waveform as headerless .raw")
	exportCmd.Flags().BoolP("trace", "t", false, "Write the execution trace")
	exportCmd.Flags().BoolP("pcm", "c", false, "Write 16-bit signed PCM (the default unless render.pcm16 is off in the config)")
	exportCmd.Flags().BoolP("float", "f", false, "Write 32-bit float samples instead of 16-bit PCM")
	exportCmd.MarkFlagsMutuallyExclusive("pcm", "float")
	exportCmd.Flags().StringP("output", "o", "", "Output directory, created if needed; defaults to the working directory")
	exportCmd.Flags().Float64("stop-ms", 0, "Stop rendering at this position in milliseconds")
	exportCmd.Flags().String("trace-format", "text", "Trace format: text, markdown or csv")
	exportCmd.Flags().String("trace-mode", "full", "Trace lines to keep: full, errors or off")
}
