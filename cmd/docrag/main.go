package main

import (
	"github.com/joho/godotenv"

	"docrag/internal/cli"
)

func main() {
	// .env is optional; configuration falls back to rag.yaml and defaults.
	_ = godotenv.Load()
	cli.Execute()
}
