// cmd/server/main.go
package main

import (
	"log"

	"github.com/aulanotes/AulaNotes/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// .env loading is optional, environment variables win
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	if err := app.GetApp().Run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
