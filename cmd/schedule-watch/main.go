package main

import "github.com/oshokin/schedule-watch/cmd/schedule-watch/cmd"

func main() {
	cmd.Execute()
}
