//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/soilsheet"

// Build tidies deps, then compiles to ./bin/soilsheet.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building server binary...")
	return sh.Run("go", "build", "-o", binary, "./cmd/server")
}

// Run builds then executes the binary.
func Run() error {
	mg.Deps(Build)
	fmt.Println(">> Starting server...")
	return sh.RunV("./" + binary)
}

// Dev starts the server via go run. Templates reload from web/templates on
// every request while ENV=development.
func Dev() error {
	fmt.Println(">> Dev mode: go run ./cmd/server ...")
	cmd := exec.Command("go", "run", "./cmd/server")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "ENV=development")
	return cmd.Run()
}

// Mailhog starts a local Mailhog container for DELIVERY_PROVIDER=smtp.
func Mailhog() error {
	if _, err := exec.LookPath("docker"); err != nil {
		fmt.Println(">> docker not found; install Mailhog another way and listen on :1025")
		return err
	}
	fmt.Println(">> Mailhog UI on http://localhost:8025")
	return sh.RunV("docker", "run", "--rm", "-p", "1025:1025", "-p", "8025:8025", "mailhog/mailhog")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Test runs all unit tests with the race detector.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover writes coverage.out and prints the per-function summary.
func Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Lint runs golangci-lint if available.
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.Run("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and locally stored uploads.
func Clean() error {
	fmt.Println(">> Cleaning...")
	os.Remove("coverage.out")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	storage := os.Getenv("LOCAL_STORAGE_PATH")
	if storage == "" {
		storage = "storage"
	}
	return os.RemoveAll(storage)
}

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("error loading .env file", "err", err)
	}
}
