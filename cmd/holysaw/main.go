// Command holysaw renders, plays, checks and serves HOLYSAW songs.
package main

func main() {
	Execute()
}
