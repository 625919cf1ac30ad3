// Command seed-availability uploads a coach profile from a YAML snapshot to a
// running API, signing the request with COACH_JWT_SECRET.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/wolfman30/coaching-platform/internal/availability"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-availability <snapshot.yaml>")
		fmt.Println("Env:   API_URL (default http://localhost:8080), COACH_JWT_SECRET (required)")
		os.Exit(1)
	}

	apiURL := strings.TrimRight(os.Getenv("API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	secret := strings.TrimSpace(os.Getenv("COACH_JWT_SECRET"))
	if secret == "" {
		fmt.Println("❌ COACH_JWT_SECRET is required")
		os.Exit(1)
	}

	profile, err := loadProfile(os.Args[1])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🌱 Seeding availability for %s (%s)\n", profile.CoachID, profile.Timezone)

	token, err := mintToken(secret, profile.CoachID, time.Now())
	if err != nil {
		fmt.Printf("❌ sign token: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 30 * time.Second}
	if err := putProfile(ctx, client, apiURL, token, profile); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Profile uploaded")
}

func loadProfile(path string) (*availability.CoachAvailability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap struct {
		Profile *availability.CoachAvailability `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Profile == nil || snap.Profile.CoachID == "" {
		return nil, errors.New("snapshot has no profile.coach_id")
	}
	return snap.Profile, nil
}

func mintToken(secret, coachID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   coachID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func putProfile(ctx context.Context, client *http.Client, apiURL, token string, profile *availability.CoachAvailability) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	url := fmt.Sprintf("%s/coaches/%s/availability", apiURL, profile.CoachID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload profile: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
