package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		os.Stderr.WriteString("warning: reading .env: " + err.Error() + "\n")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
