package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/holysaw/holysaw"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Start a new song from the default template",
	Long:  `Writes the default song as NAME.ihs, or to NAME itself if it already has a .ihs, .json, .yml or .yaml extension.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := args[0]
		switch filepath.Ext(path) {
		case ".ihs", ".json", ".yml", ".yaml":
		default:
			path += ".ihs"
		}
		flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if force {
			flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(path, flag, 0o644)
		if err != nil {
			return fmt.Errorf("could not create song: %w", err)
		}
		song := holysaw.DefaultSong()
		song.Name = filepath.Base(args[0])
		if err := holysaw.WriteSong(f, song, holysaw.SongFormatFromPath(path)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}
