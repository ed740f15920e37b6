// webhook-seeder generates signed synthetic webhook traffic against a
// running gateway, for load testing and end-to-end smoke checks.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var (
	gatewayURL = flag.String("gateway-url", "http://localhost:8090", "Gateway base URL")
	source     = flag.String("source", "internal-worker", "Registered source name")
	scheme     = flag.String("scheme", "body_hmac", "Signing scheme: timestamped_hmac, body_hmac, shared_secret")
	secret     = flag.String("secret", "", "Shared secret for the source (required)")
	sigHeader  = flag.String("signature-header", "X-Hook-Signature", "Signature header name")
	count      = flag.Int("count", 100, "Number of events to send")
	interval   = flag.Duration("interval", 100*time.Millisecond, "Interval between events")
	duplicates = flag.Float64("duplicate-rate", 0.1, "Fraction of events re-sent with the same event ID")
)

func main() {
	flag.Parse()

	if *secret == "" {
		log.Fatal("Secret is required. Use -secret flag")
	}

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting webhook seeder:")
	log.Printf("  Gateway URL: %s", *gatewayURL)
	log.Printf("  Source: %s", *source)
	log.Printf("  Scheme: %s", *scheme)
	log.Printf("  Event count: %d", *count)
	log.Printf("  Duplicate rate: %.2f", *duplicates)

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	successCount := 0
	failCount := 0
	var lastBody []byte

	for i := 0; i < *count; i++ {
		body := lastBody
		if body == nil || rand.Float64() >= *duplicates {
			body = generateEvent()
		}
		lastBody = body

		if err := send(client, body); err != nil {
			log.Printf("Failed to send event: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d events sent", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Seeding complete:")
	log.Printf("  Success: %d events", successCount)
	log.Printf("  Failed: %d events", failCount)
}

func generateEvent() []byte {
	var event map[string]any
	if rand.Intn(2) == 0 {
		event = map[string]any{
			"id":          "evt_" + uuid.New().String(),
			"type":        "deployment",
			"action":      gofakeit.RandomString([]string{"started", "finished", "rolled_back"}),
			"system":      gofakeit.AppName(),
			"environment": gofakeit.RandomString([]string{"production", "staging", "dev"}),
			"status":      gofakeit.RandomString([]string{"success", "failure", "in_progress"}),
			"version":     gofakeit.AppVersion(),
		}
	} else {
		event = map[string]any{
			"id":          "evt_" + uuid.New().String(),
			"type":        "incident",
			"action":      "opened",
			"system":      gofakeit.AppName(),
			"environment": gofakeit.RandomString([]string{"production", "staging"}),
			"severity":    gofakeit.RandomString([]string{"low", "medium", "high", "critical"}),
			"status":      "open",
			"title":       gofakeit.HackerPhrase(),
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}
	return body
}

func send(client *http.Client, body []byte) error {
	url := fmt.Sprintf("%s/webhooks/%s", *gatewayURL, *source)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	switch *scheme {
	case "timestamped_hmac":
		ts := fmt.Sprintf("%d", time.Now().Unix())
		mac := hmac.New(sha256.New, []byte(*secret))
		fmt.Fprintf(mac, "%s.", ts)
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set(*sigHeader, fmt.Sprintf("t=%s,v1=%s", ts, sig))
	case "shared_secret":
		req.Header.Set(*sigHeader, *secret)
	default: // body_hmac
		mac := hmac.New(sha256.New, []byte(*secret))
		mac.Write(body)
		req.Header.Set(*sigHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}
