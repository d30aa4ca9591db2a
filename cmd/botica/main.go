package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"botica/internal/auth"
	"botica/internal/cli"
	"botica/internal/config"
	"botica/internal/service"
	"botica/internal/store/memory"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	cfg := config.Load()

	ownerPassword := cfg.OwnerPassword
	if ownerPassword == "" {
		var err error
		ownerPassword, err = promptInitialPassword()
		if err != nil {
			log.Fatalf("owner password is required: %v", err)
		}
	}

	guard, err := auth.NewGuard(ownerPassword)
	if err != nil {
		log.Fatalf("invalid owner password: %v", err)
	}

	repo := memory.New(cfg.CatalogCapacity, cfg.LedgerCapacity)
	log.Printf("repository: in-memory (catalog capacity %d, ledger capacity %d)", cfg.CatalogCapacity, cfg.LedgerCapacity)

	svc := service.New(repo)
	app := cli.New(svc, guard, os.Stdin, os.Stdout, cfg.ExportFile)

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("session error: %v", err)
	}
}

// promptInitialPassword asks the operator for the owner password on
// first run when BOTICA_OWNER_PASSWORD is unset. There is no built-in
// default.
func promptInitialPassword() (string, error) {
	fmt.Print("Set the owner password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(string(secret)) == "" {
			return "", fmt.Errorf("empty password")
		}
		return string(secret), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty password")
	}
	return line, nil
}
