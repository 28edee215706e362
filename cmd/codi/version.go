package main

import "fmt"

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = ""
)

func buildVersionString() string {
	if commit == "" {
		return fmt.Sprintf("codi %s", version)
	}
	return fmt.Sprintf("codi %s (%s)", version, commit)
}
