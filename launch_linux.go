//go:build linux

package main

import (
	"fmt"
	"os/exec"
)

// openBrowser opens the URL with the desktop's default handler. Refuses when
// no terminal is attached; the flow then prints the URL instead.
func openBrowser(url string) error {
	if !interactiveTerminal() {
		return fmt.Errorf("no interactive terminal")
	}

	return exec.Command("xdg-open", url).Start()
}
