// Seed creates sample listings covering every care payload shape. Run from project root: go run ./scripts/seed
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"plantcare/internal/database"
	"plantcare/internal/models"
	"plantcare/internal/repository"

	"github.com/spf13/pflag"
)

const structuredCare = `{
  "actionable_tasks": [
    {"title": "Water", "description": "Soak until water drains from the pot.", "frequency_days": 7, "is_optional": false},
    {"title": "Fertilize", "description": "Half-strength liquid feed.", "frequency_days": 30, "is_optional": false},
    {"title": "Mist leaves", "description": "Raise humidity in dry rooms.", "frequency_days": 3, "is_optional": true}
  ],
  "care_tips": ["Bright, indirect light.", "Keep away from cold drafts."]
}`

const legacyCare = `Water sparingly, only when the soil is completely dry all the way down.
Full sun. A south facing window is ideal for this desert plant.

Repot every two to three years in gritty cactus mix.`

func main() {
	prefix := pflag.String("prefix", "seed", "listing id prefix")
	copies := pflag.Int("copies", 1, "number of listings to create per shape")
	pflag.Parse()

	loadEnvFile(".env")

	ctx := context.Background()
	db := database.InitDB(ctx)
	if db == nil {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set or DB connection failed")
		os.Exit(1)
	}

	if err := database.MigrateOrCreateSchema(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	shapes := []struct {
		name, species, care string
	}{
		{"structured", "Monstera deliciosa", structuredCare},
		{"legacy", "Echinopsis pachanoi", legacyCare},
		{"empty", "Ficus lyrata", ""},
	}
	start := time.Now()
	n := 0
	for i := 0; i < *copies; i++ {
		for _, s := range shapes {
			id := fmt.Sprintf("%s-%s", *prefix, s.name)
			if *copies > 1 {
				id = fmt.Sprintf("%s-%d", id, i+1)
			}
			l := &models.Listing{ID: id, Species: s.species, CareDetails: s.care}
			if err := repository.CreateListing(ctx, l); err != nil {
				fmt.Fprintln(os.Stderr, "Insert failed:", err)
				os.Exit(1)
			}
			n++
			fmt.Println(id)
		}
	}

	fmt.Printf("Done: %d listings in %v\n", n, time.Since(start))
}

func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
