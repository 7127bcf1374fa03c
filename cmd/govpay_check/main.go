package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"courtpay_api/internal/services"
)

// Diagnostic CLI: polls the card provider for one payment reference and
// prints the mapped internal status.
func main() {
	reference := flag.String("reference", "", "Payment reference to poll")
	flag.Parse()

	if *reference == "" {
		log.Fatal("Please provide a payment reference using -reference flag")
	}

	// Load envs
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found")
	}

	if !services.ValidateReference(*reference) {
		log.Fatalf("Reference %s fails check-digit validation", *reference)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	state, err := services.NewGovPayService().PaymentStatus(ctx, *reference)
	if err != nil {
		log.Fatalf("Failed to poll provider: %v", err)
	}

	log.Printf("Provider state for %s: status=%s finished=%t code=%q message=%q",
		*reference, state.Status, state.Finished, state.Code, state.Message)
}
