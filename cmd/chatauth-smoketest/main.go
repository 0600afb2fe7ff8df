package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/sign"
)

var (
	urlFlag        = flag.String("url", "http://localhost:3000/authenticate", "Authenticate endpoint")
	realmFlag      = flag.String("realm", "", "Realm account address")
	governanceFlag = flag.String("governance", "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw", "Governance program id")
	keyFlag        = flag.String("key", "", "Base58 64-byte wallet secret key (random when empty)")
	modeFlag       = flag.String("mode", "open", "open|detached signature format")
	messageFlag    = flag.String("message", "", "Challenge to sign (defaults to AUTH_MESSAGE)")
	timeoutFlag    = flag.Duration("timeout", 30*time.Second, "Request timeout")
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	flag.Parse()

	if *realmFlag == "" {
		log.Fatal("-realm is required")
	}
	challenge := pickFirst(*messageFlag, os.Getenv("AUTH_MESSAGE"))
	if challenge == "" {
		log.Fatal("no challenge: pass -message or set AUTH_MESSAGE")
	}

	priv, err := loadKey(*keyFlag)
	if err != nil {
		log.Fatalf("key: %v", err)
	}
	pubKey := base58.Encode(priv.Public().(ed25519.PublicKey))

	signed, err := signChallenge(priv, challenge, *modeFlag)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"pubKey":  pubKey,
		"message": signed,
		"realm": map[string]string{
			"governanceId": *governanceFlag,
			"pubKey":       *realmFlag,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	status, reply, err := post(ctx, *urlFlag, body)
	if err != nil {
		log.Fatalf("request ❌ %v", err)
	}
	fmt.Printf("wallet  %s\n", pubKey)
	fmt.Printf("mode    %s\n", *modeFlag)
	fmt.Printf("status  %d (%s)\n", status, time.Since(start).Round(time.Millisecond))
	fmt.Printf("body    %s\n", reply)
	if status != http.StatusOK {
		os.Exit(1)
	}
}

func loadKey(encoded string) (ed25519.PrivateKey, error) {
	if encoded == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func signChallenge(priv ed25519.PrivateKey, challenge, mode string) (string, error) {
	switch mode {
	case "open":
		var key [64]byte
		copy(key[:], priv)
		return base64.StdEncoding.EncodeToString(sign.Sign(nil, []byte(challenge), &key)), nil
	case "detached":
		return base58.Encode(ed25519.Sign(priv, []byte(challenge))), nil
	}
	return "", fmt.Errorf("unknown mode %q", mode)
}

func post(ctx context.Context, url string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(reply), nil
}

func pickFirst(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
