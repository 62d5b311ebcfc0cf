//go:build !linux && !darwin

package main

import "fmt"

// openBrowser has no portable implementation here; the flow prints the URL.
func openBrowser(string) error {
	return fmt.Errorf("opening a browser is not supported on this platform")
}
