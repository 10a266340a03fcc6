package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/holysaw/holysaw"
)

func readSong(filename string) (holysaw.Song, error) {
	f, err := os.Open(filename)
	if err != nil {
		return holysaw.Song{}, fmt.Errorf("could not open song: %w", err)
	}
	defer f.Close()
	song, err := holysaw.ReadSong(f)
	if err != nil {
		return holysaw.Song{}, fmt.Errorf("%v: %w", filename, err)
	}
	if song.Name == "" {
		song.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return song, nil
}

// stopMsFlag returns nil when the flag was not given, so that the whole
// timeline is rendered.
func stopMsFlag(flags interface {
	Changed(string) bool
	GetFloat64(string) (float64, error)
}) *float64 {
	if !flags.Changed("stop-ms") {
		return nil
	}
	v, _ := flags.GetFloat64("stop-ms")
	return &v
}
