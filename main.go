package main

import (
	"github.com/joho/godotenv"

	"gitsage/cmd"
)

func main() {
	// Load .env if present so API keys can live next to the project.
	_ = godotenv.Load()
	cmd.Execute()
}
