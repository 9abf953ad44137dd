package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Harvest builds the CLI and runs a harvest with ./harvester.yaml.
// HARVESTER_RULES overrides the rule document.
func Harvest() error {
	mg.Deps(Build)
	args := []string{"harvest"}
	if rules := os.Getenv("HARVESTER_RULES"); rules != "" {
		args = append(args, "--rules", rules)
	}
	return sh.RunV("./bin/harvester", args...)
}

// Clear deletes the harvested documents of the configured rule set.
func Clear() error {
	mg.Deps(Build)
	return sh.RunV("./bin/harvester", "clear")
}
