package holysaw

var defaultSong = Song{
	Name:     "Untitled",
	Preamble: "rowMs = 1000\ntone = 440",
	Timeline: Timeline{
		{Cells: []Cell{{MsDuration: 1000, Content: "y() = 0.5 * sin(tone * tau * t)"}}},
		{Cells: []Cell{{MsDuration: 500, Content: ""}, {MsDuration: 500, Content: "tone = 660"}}},
	},
}

// DefaultSong returns the song a new project starts with.
func DefaultSong() Song {
	return defaultSong.Copy()
}
