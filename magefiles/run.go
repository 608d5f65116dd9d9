//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed. LUMEN_CONFIG points it to a TOML configuration file.
func (Run) Engine() error {
	args := []string{"run", "main.go"}
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		args = append(args, "-config", path)
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs(args...), withStream()); err != nil {
		return err
	}
	return nil
}
