package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/engine"
)

func main() {
	baseURL := flag.String("url", os.Getenv("ENGINE_BASE_URL"), "evaluation service base URL")
	color := flag.String("color", "", "send white or black after /start")
	move := flag.String("move", "e2e4", "UCI move posted to /position")
	timeout := flag.Duration("timeout", 8*time.Second, "per-request timeout")
	flag.Parse()

	if strings.TrimSpace(*baseURL) == "" {
		log.Fatal("ENGINE_BASE_URL is required")
	}

	client := engine.NewClient(*baseURL, engine.WithTimeout(*timeout))

	ctx, cancel := context.WithTimeout(context.Background(), 3*(*timeout))
	defer cancel()

	reply, err := client.Start(ctx)
	if err != nil {
		log.Printf("/start error: %v", err)
	} else {
		log.Printf("/start ok: %s", strings.TrimSpace(reply))
	}

	if *color != "" {
		reply, err := client.SendColor(ctx, *color)
		if err != nil {
			log.Printf("/move color error: %v", err)
		} else {
			log.Printf("/move color ok: %s", strings.TrimSpace(reply))
		}
	}

	best, err := client.Position(ctx, *move)
	if err != nil {
		log.Printf("/position error: %v", err)
		os.Exit(1)
	}
	log.Printf("/position ok: %s -> best %s", *move, best.UCI())
}
