// Gen-jwt prints a bearer token accepted by the write endpoints when JWT_SECRET is set.
// JWT_SUBJECT names the caller (default "todo-cli"), JWT_TTL_HOURS sets the lifetime (default 24).
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"todo-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	config.LoadEnvFile(".env")

	secret := config.Get().JWTSecret
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET not set; the server accepts writes without a token")
		os.Exit(1)
	}
	subject := os.Getenv("JWT_SUBJECT")
	if subject == "" {
		subject = "todo-cli"
	}
	ttl := 24
	if v, err := strconv.Atoi(os.Getenv("JWT_TTL_HOURS")); err == nil && v > 0 {
		ttl = v
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttl) * time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}

	fmt.Println(signed)
}
