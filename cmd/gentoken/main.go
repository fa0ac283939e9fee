package main

import (
	"fmt"
	"log"

	"hdbackend/core"
)

func main() {
	log.Printf("🔑 Generating new agent API token...")

	apiToken, err := core.NewSecretKey("hd")
	if err != nil {
		log.Fatalf("❌ Failed to generate API token: %v", err)
	}

	fmt.Printf("Generated API Token: %s\n", apiToken)
	log.Printf("✅ Successfully generated agent API token")
}
