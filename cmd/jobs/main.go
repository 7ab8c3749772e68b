// Command jobs runs one maintenance job outside the server's schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"skillswap/internal/bootstrap"
	"skillswap/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	name := flag.String("job", "", "Job to run")
	list := flag.Bool("list", false, "List registered jobs")
	timeout := flag.Duration("timeout", 10*time.Minute, "Give up after this long")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	if *list || *name == "" {
		for _, s := range rt.Scheduler.Status() {
			fmt.Printf("%-20s %s\n", s.Name, s.Schedule)
		}
		if !*list {
			return fmt.Errorf("usage: jobs -job <name> | -list")
		}
		return nil
	}

	started := time.Now()
	if err := rt.Scheduler.RunJob(ctx, *name); err != nil {
		return fmt.Errorf("job %s failed after %s: %w", *name, time.Since(started).Round(time.Millisecond), err)
	}
	log.Printf("Job %s finished in %s", *name, time.Since(started).Round(time.Millisecond))
	return nil
}
