//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the tests with the race detector; the config watcher and the error
// queue are the concurrent parts.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./engine/core/...", "./engine/config/...", "./engine/containers/..."), withStream())
	return err
}

type Vet mg.Namespace

// Runs go vet over the module.
func (Vet) All() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
