// Command maintenance flips the runtime maintenance switch the server
// consults on every request. Usage:
//
//	maintenance --redis redis://localhost:6379 on
//	maintenance off
//	maintenance status
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ChafterInnovations/Kutter/internal/redis"
)

func main() {
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	action := flag.Arg(0)
	if action != "on" && action != "off" && action != "status" {
		log.Fatalf("Usage: %s [--redis URL] on|off|status", os.Args[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	store := redis.NewMaintenanceStore(rdb)

	switch action {
	case "on":
		if err := store.Set(ctx, true); err != nil {
			log.Fatalf("Failed to enable maintenance mode: %v", err)
		}
		fmt.Println("maintenance mode enabled")
	case "off":
		if err := store.Set(ctx, false); err != nil {
			log.Fatalf("Failed to disable maintenance mode: %v", err)
		}
		fmt.Println("maintenance mode disabled")
	case "status":
		enabled, err := store.Enabled(ctx)
		if err != nil {
			log.Fatalf("Failed to read maintenance mode: %v", err)
		}
		if enabled {
			fmt.Println("maintenance mode is ON")
		} else {
			fmt.Println("maintenance mode is OFF")
		}
	}
}
