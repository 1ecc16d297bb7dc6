package main

import "github.com/jmcleod/lectern/cmd/lectern/cmd"

func main() {
	cmd.Execute()
}
