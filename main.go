package main

import "github.com/scorelines/matchpipe/cmd"

func main() {
	cmd.Execute()
}
