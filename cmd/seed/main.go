// Command seed loads the skills catalogue and, optionally, fake members.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 30, "Number of fake members to create")
	numSwaps := flag.Int("swaps", 60, "Number of swap requests to create")
	clean := flag.Bool("clean", false, "Remove existing members and their activity first")
	catalogueOnly := flag.Bool("catalogue-only", false, "Only load the skills catalogue")
	cataloguePath := flag.String("catalogue", "", "Load skills from this YAML file instead of the built-in list")
	randSeed := flag.Int64("rand-seed", 0, "Seed for reproducible fake data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() && !*catalogueOnly {
		log.Fatal("Refusing to generate fake members in production; pass -catalogue-only")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *cataloguePath != "" {
		f, err := os.Open(*cataloguePath)
		if err != nil {
			log.Fatalf("Failed to open catalogue: %v", err)
		}
		entries, err := seed.ParseCatalogue(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Invalid catalogue: %v", err)
		}
		n, err := seed.Skills(ctx, db, entries)
		if err != nil {
			log.Fatalf("Catalogue seeding failed: %v", err)
		}
		log.Printf("%d skills added from %s", n, *cataloguePath)
	}

	if *catalogueOnly {
		if *cataloguePath == "" {
			entries, err := seed.BuiltInCatalogue()
			if err != nil {
				log.Fatalf("Built-in catalogue is invalid: %v", err)
			}
			n, err := seed.Skills(ctx, db, entries)
			if err != nil {
				log.Fatalf("Catalogue seeding failed: %v", err)
			}
			log.Printf("%d skills added", n)
		}
		return
	}

	summary, err := seed.Seed(ctx, db, seed.Options{
		NumUsers: *numUsers,
		NumSwaps: *numSwaps,
		Clean:    *clean,
		RandSeed: *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d swaps, %d messages, %d feedback entries",
		summary.Users, summary.Swaps, summary.Messages, summary.Feedback)
	log.Printf("All generated members use the password: %s", seed.DefaultPassword)
}
