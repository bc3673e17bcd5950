package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/utils"
	"github.com/eventlodge/accommodation-backend/pkg/jwt"
	"github.com/google/uuid"
)

func main() {
	userFlag := flag.String("dev-token-user", "", "also mint an access token for this user id, signed with the new secret")
	issuer := flag.String("issuer", "eventlodge-identity", "issuer claim for the dev token")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of the dev token")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for EventLodge")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateJWTSecret()
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("✅ Secret generated successfully!")
	fmt.Println()
	fmt.Println("Add this to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Printf("JWT_ISSUER=%s\n", *issuer)

	if *userFlag != "" {
		userID, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("Invalid user id %q: %v", *userFlag, err)
		}

		token, err := jwt.NewService(secret, *issuer, *ttl).GenerateAccessToken(userID, []string{"attendee"})
		if err != nil {
			log.Fatalf("Failed to mint dev token: %v", err)
		}
		fmt.Printf("BOOKER_ACCESS_TOKEN=%s\n", token)
	}

	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
