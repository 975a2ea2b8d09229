package main

import (
	"log"

	"github.com/spec-kit/support-bot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
