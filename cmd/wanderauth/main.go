// Command wanderauth drives the auth core from a terminal: sign in with an
// email, phone number or username, register, run a bootstrap pass and
// manage the landing page slides.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
