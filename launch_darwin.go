//go:build darwin

package main

import (
	"fmt"
	"os/exec"
)

// openBrowser opens the URL with the system default browser. Refuses when no
// terminal is attached; the flow then prints the URL instead.
func openBrowser(url string) error {
	if !interactiveTerminal() {
		return fmt.Errorf("no interactive terminal")
	}

	return exec.Command("open", url).Start()
}
