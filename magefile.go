//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

var commands = []string{"qpstream", "qpstream-server", "config-convert"}

// Build compiles every command into ./bin
func Build() error {
	mg.Deps(BuildQpstream, BuildServer, BuildConfigConvert)
	fmt.Println("Compilation finished")
	return nil
}

func BuildQpstream() error {
	return buildCommand("qpstream")
}

func BuildServer() error {
	return buildCommand("qpstream-server")
}

func BuildConfigConvert() error {
	return buildCommand("config-convert")
}

// Test runs the unit tests
func Test() error {
	fmt.Println("Running tests...")
	return run("go", "test", "./...")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning...")
	return os.RemoveAll("bin")
}

func buildCommand(name string) error {
	fmt.Printf("Building %s executable...\n", name)
	cmd := exec.Command("go", "build", "-o", "./bin/"+name, "./cmd/"+name)
	// modernc.org/sqlite is pure Go
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
