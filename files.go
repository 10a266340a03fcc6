package holysaw

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SongFormat is the encoding of a project file.
type SongFormat int

const (
	FormatJSON SongFormat = iota // .ihs project files are JSON
	FormatYAML
)

// SongFormatFromPath picks the format by file extension: .yml and .yaml are
// YAML, everything else (.ihs, .json) is JSON.
func SongFormatFromPath(path string) SongFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	}
	return FormatJSON
}

// ReadSong decodes a project file, trying JSON first and YAML second. The
// song must contain at least one channel. Non-finite durations, which YAML
// can express but JSON cannot, are read as 0.
func ReadSong(r io.Reader) (Song, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Song{}, fmt.Errorf("could not read song: %w", err)
	}
	var song Song
	if errJSON := json.Unmarshal(b, &song); errJSON != nil {
		song = Song{}
		if errYaml := yaml.Unmarshal(b, &song); errYaml != nil {
			return Song{}, fmt.Errorf("the song could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := song.Validate(); err != nil {
		return Song{}, err
	}
	zeroNonFiniteDurations(song.Timeline)
	return song, nil
}

// WriteSong encodes the song in the given format. JSON is indented with four
// spaces, the layout of .ihs files. Non-finite durations are written as 0;
// the cell is malformed either way.
func WriteSong(w io.Writer, song Song, format SongFormat) error {
	song = song.Copy()
	zeroNonFiniteDurations(song.Timeline)
	var contents []byte
	var err error
	if format == FormatYAML {
		contents, err = yaml.Marshal(song)
	} else {
		contents, err = json.MarshalIndent(song, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("could not marshal song: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write song: %w", err)
	}
	return nil
}

func zeroNonFiniteDurations(t Timeline) {
	for _, c := range t {
		for i := range c.Cells {
			if d := c.Cells[i].MsDuration; math.IsNaN(d) || math.IsInf(d, 0) {
				c.Cells[i].MsDuration = 0
			}
		}
	}
}
