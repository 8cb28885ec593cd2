package main

import (
	"log"
	"os"

	"github.com/dmitrijs2005/ticketkeeper/internal/vaultctl"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := vaultctl.Run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
