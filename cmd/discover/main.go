package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/minjk-dev/go-scrape-musinsa/config"
	"github.com/minjk-dev/go-scrape-musinsa/discover"
)

func main() {
	config.LoadDotenv()

	categoryDefault := "001"
	if value, ok := config.EnvString("DISCOVER_CATEGORY"); ok {
		categoryDefault = value
	}
	outputDefault := "data/goods_ids.csv"
	if value, ok := config.EnvString("DISCOVER_OUTPUT"); ok {
		outputDefault = value
	}

	category := flag.String("category", categoryDefault, "Category code to crawl (e.g. 001)")
	gender := flag.String("gf", "M", "Gender filter parameter")
	pages := flag.Int("pages", 1000, "Maximum listing pages to crawl")
	output := flag.String("output", outputDefault, "Identifier CSV output path")
	baseURL := flag.String("base-url", "", "Listing API base URL (default production host)")
	delay := flag.Duration("delay", 200*time.Millisecond, "Fixed delay between listing pages")
	randomDelay := flag.Duration("random-delay", 300*time.Millisecond, "Random jitter added to the delay")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	crawler, err := discover.New(discover.Options{
		BaseURL:     *baseURL,
		Category:    *category,
		Gender:      *gender,
		MaxPages:    *pages,
		Delay:       *delay,
		RandomDelay: *randomDelay,
	})
	if err != nil {
		slog.Error("initialising listing crawler", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting discovery",
		slog.String("category", *category),
		slog.Int("max_pages", *pages),
	)

	start := time.Now()
	items, err := crawler.Run()
	if err != nil {
		slog.Warn("discovery ended early", slog.Any("error", err), slog.Int("items", len(items)))
	}
	if len(items) == 0 {
		slog.Error("no items collected")
		os.Exit(1)
	}

	if err := discover.WriteCSV(items, *output); err != nil {
		slog.Error("writing identifier file", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("collected %d identifiers for category %s in %v -> %s\n",
		len(items), *category, time.Since(start).Round(time.Second), *output)
}
