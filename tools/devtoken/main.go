// Command devtoken mints HS256 access tokens for local runs against the gateway or the
// services, optionally calling an endpoint with it.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/md-rashed-zaman/apptbook/libs/auth"
)

func main() {
	var (
		subject = flag.String("sub", getenv("DEV_USER_ID", ""), "user id placed in the sub claim")
		role    = flag.String("role", getenv("DEV_ROLE", "client"), "client or provider")
		email   = flag.String("email", getenv("DEV_EMAIL", ""), "email claim, used for notification mail")
		secret  = flag.String("secret", getenv("JWT_SECRET", "dev-secret"), "HS256 signing secret")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
		get     = flag.String("get", "", "optional URL to GET with the token")
	)
	flag.Parse()

	tok, err := mint(*subject, *role, *email, *secret, *ttl, time.Now())
	if err != nil {
		fatal(err.Error())
	}
	if *get == "" {
		fmt.Println(tok)
		return
	}

	req, err := http.NewRequest(http.MethodGet, *get, nil)
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func mint(subject, role, email, secret string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("-sub is required")
	}
	if role != "client" && role != "provider" {
		return "", fmt.Errorf("-role must be client or provider (got %q)", role)
	}
	return auth.SignHS256(auth.Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}, secret)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
