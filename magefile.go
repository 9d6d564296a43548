//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// Build compiles the server binary into bin/intake.
func Build() error {
	mg.Deps(Vet)
	return sh.RunV("go", "build", "-o", "bin/intake", ".")
}

// Test runs every package test with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Run starts the server against the local SQLite database.
func Run() error {
	mg.Deps(Build)
	return sh.RunWithV(map[string]string{"INTAKE_DB_DRIVER": "sqlite"}, "bin/intake")
}

func Clean() error {
	return sh.Rm("bin")
}
