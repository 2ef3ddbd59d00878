package main

import "github.com/oshokin/schedule-watch/cmd/schedule-ctl/cmd"

func main() {
	cmd.Execute()
}
