package cmd

import (
	"fmt"
	"io"
)

const banner = `
  _                _
 | |    ___   ___ | |_  ___  _ __  _ __
 | |   / _ \ / __|| __|/ _ \| '__|| '_ \
 | |__|  __/| (__ | |_|  __/| |   | | | |
 |_____\___| \___| \__|\___||_|   |_| |_|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Q&A reader - Version %s\x1b[0m\n\n", Version)
}
