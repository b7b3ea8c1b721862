package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradeboard.org/internal/config"
	"tradeboard.org/internal/migrate"
	"tradeboard.org/internal/store/pg"
)

func main() {
	dir := flag.String("dir", "migrations", "directory containing *.up.sql / *.down.sql files")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the command")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("config: TRADEBOARD_PG_DSN is required")
	}

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner := migrate.NewRunner(store.DB(), *dir)

	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("no pending migrations")
			return
		}
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		name, err := runner.Down(ctx)
		if err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("rolled back", name)
	case "status":
		names, err := runner.Applied(ctx)
		if err != nil {
			log.Fatalf("migrate status: %v", err)
		}
		if len(names) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", cmd)
		os.Exit(2)
	}
}
