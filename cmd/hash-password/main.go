package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/logger"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minPasswordLen = 4

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── CLI Input ─────────────────────────────────────────────────────
	fmt.Println("=== Hash Proctor Password ===")

	fmt.Print("Enter Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if len(first) < minPasswordLen {
		fmt.Printf("Error: Password must be at least %d characters\n", minPasswordLen)
		os.Exit(1)
	}

	fmt.Print("Confirm Password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if string(first) != string(second) {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashed, err := bcrypt.GenerateFromPassword(first, bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Println("\nAdd this line to your .env:")
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hashed)
}
