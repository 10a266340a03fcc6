package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/expr"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Find the broken cells of songs",
	Long: `Loads the songs, runs a silent synthesis and reports malformed cells and the
cells and output calls that failed while rendering.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := termenv.Ascii
		if f, ok := cmd.OutOrStdout().(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			profile = termenv.ColorProfile()
		}
		trace, _ := cmd.Flags().GetBool("trace")
		c := checker{out: cmd.OutOrStdout(), profile: profile, stopMs: stopMsFlag(cmd.Flags()), trace: trace}
		failed := 0
		for _, filename := range args {
			ok, err := c.check(cmd, filename)
			if err != nil {
				return err
			}
			if !ok {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d songs have problems", failed, len(args))
		}
		return nil
	},
}

type checker struct {
	out     io.Writer
	profile termenv.Profile
	stopMs  *float64
	trace   bool
}

var titleCase = cases.Title(language.English)

func (c *checker) check(cmd *cobra.Command, filename string) (bool, error) {
	song, err := readSong(filename)
	if err != nil {
		return false, err
	}
	mode := holysaw.TraceOff
	if c.trace {
		mode = holysaw.TraceErrors
	}
	res, err := holysaw.Synthesize(cmd.Context(), expr.EvaluatorService{}, song, holysaw.SynthesizeOptions{
		StopMs:    c.stopMs,
		TraceMode: mode,
	})
	var preamble *holysaw.PreambleError
	if errors.As(err, &preamble) {
		fmt.Fprintf(c.out, "%s: %s\n", titleCase.String(song.Name), c.fail(preamble.Error()))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "%s: %d samples, %d channels\n", titleCase.String(song.Name), len(res.Samples), len(song.Timeline))
	for _, m := range res.Malformed {
		fmt.Fprintf(c.out, "  %s\n", c.fail(m.Error()))
	}
	// a broken cell fails at each of its samples: report it once
	seen := map[string]bool{}
	for _, e := range res.Errors {
		var key string
		var cellErr *holysaw.CellEvalError
		if errors.As(e, &cellErr) {
			key = cellErr.Pos.String()
		} else {
			key = "output"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		fmt.Fprintf(c.out, "  %s\n", c.fail(e.Error()))
	}
	if res.Recovered > 0 {
		fmt.Fprintf(c.out, "  %d recovered errors\n", res.Recovered)
	}
	if c.trace {
		if _, err := res.Trace.WriteTo(c.out); err != nil {
			return false, err
		}
	}
	ok := len(res.Malformed) == 0 && res.Recovered == 0
	if ok {
		fmt.Fprintf(c.out, "  %s\n", termenv.String("ok").Foreground(c.profile.Color("2")))
	}
	return ok, nil
}

func (c *checker) fail(s string) termenv.Style {
	return termenv.String(s).Foreground(c.profile.Color("1"))
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Float64("stop-ms", 0, "Only check up to this position in milliseconds")
	checkCmd.Flags().Bool("trace", false, "Print every trace line that carries an error")
}
