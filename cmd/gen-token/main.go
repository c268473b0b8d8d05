package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		admin  = flag.String("admin", "admin", "admin identity (sub claim), or prefix when count > 1")
		name   = flag.String("name", "", "display name reported as updated_by")
		count  = flag.Int("count", 1, "number of tokens to generate")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
		output = flag.String("output", "", "file to write generated tokens as a JSON array")
	)
	flag.Parse()

	secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
	if secret == "" {
		log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set")
	}
	if *count < 1 {
		log.Fatal("count must be at least 1")
	}

	tokens, err := generateTokens([]byte(secret), os.Getenv("AUTH0_AUDIENCE"), *admin, *name, *count, *ttl, time.Now())
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func generateTokens(secret []byte, audience, admin, name string, count int, ttl time.Duration, now time.Time) ([]string, error) {
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	tokens := make([]string, count)
	for i := range tokens {
		sub := admin
		if count > 1 {
			sub = fmt.Sprintf("%s-%d", admin, i+1)
		}
		claims := jwt.MapClaims{
			"sub": sub,
			"iat": now.Unix(),
			"exp": now.Add(ttl).Unix(),
		}
		if audience != "" {
			claims["aud"] = audience
		}
		if name != "" {
			claims["name"] = name
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.ConfigStd.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
