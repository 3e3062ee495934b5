package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/crawlkit/ftpfetch"
)

func main() {
	fmt.Println("ftpfetch CLI Tool")
	fmt.Println("=================")
	fmt.Println("Commands: get <ftp-url>, ls <ftp-url>, stats, quit")
	fmt.Println()

	log := ftpfetch.NewTrafficLog()
	client := ftpfetch.NewClient(ftpfetch.Config{
		MaxConnsPerHost:     4,
		HealthCheckInterval: 30 * time.Second,
		Recorder:            log,
		NewCircuitBreaker:   ftpfetch.NewCircuitBreakerConfig(1, time.Minute, 30*time.Second),
	})
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

		switch strings.ToLower(parts[0]) {
		case "get":
			if len(parts) != 2 {
				fmt.Println("usage: get <ftp-url>")
				break
			}
			req, err := ftpfetch.ParseRequest(parts[1])
			if err != nil {
				fmt.Printf("bad url: %v\n", err)
				break
			}
			resp, err := client.Fetch(ctx, req)
			if err != nil {
				fmt.Printf("fetch failed: %v\n", err)
				break
			}
			n, _ := io.Copy(os.Stdout, resp.Body)
			fmt.Printf("\n%d bytes, reply %s\n", n, resp.Reply)

		case "ls":
			if len(parts) != 2 {
				fmt.Println("usage: ls <ftp-url>")
				break
			}
			req, err := ftpfetch.ParseRequest(parts[1])
			if err != nil {
				fmt.Printf("bad url: %v\n", err)
				break
			}
			resp, err := client.FetchListing(ctx, req)
			if err != nil {
				fmt.Printf("listing failed: %v\n", err)
				break
			}
			for _, entry := range resp.Files {
				size := "-"
				if entry.Size >= 0 {
					size = fmt.Sprintf("%d", entry.Size)
				}
				fmt.Printf("%-8s %10s  %s\n", entry.Kind, size, entry.Name)
			}

		case "stats":
			stats := client.Stats()
			fmt.Printf("fetches=%d listings=%d fallbacks=%d errors=%d bytes=%d\n",
				stats.Fetches, stats.Listings, stats.Fallbacks, stats.Errors, stats.BytesFetched)
			fmt.Printf("traffic: %d payload bytes, digest %016x\n", log.PayloadBytes(), log.PayloadDigest())
			for _, ps := range client.PoolStats() {
				fmt.Printf("pool %s: total=%d idle=%d acquired=%d\n",
					ps.Addr, ps.TotalConns, ps.IdleConns, ps.AcquiredConns)
			}

		case "quit", "exit":
			cancel()
			return

		default:
			fmt.Println("unknown command")
		}
		cancel()
	}
}
