// Command genweather writes a deterministic synthetic weather fixture: a set
// of fields, each with trailing daily history and a short forecast. The same
// flags always produce the same file.
//
// Usage:
//
//	go run ./cmd/genweather \
//	  -out data/fixtures/spring_weather.json \
//	  -fields 12 -history 30 -forecast 7 -today 2025-04-10 -seed 7
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the fixture JSON")
	fields := flag.Int("fields", 8, "number of fields")
	history := flag.Int("history", 30, "days of history per field")
	forecast := flag.Int("forecast", 7, "days of forecast per field")
	todayStr := flag.String("today", "2025-04-10", "local date splitting history from forecast (YYYY-MM-DD)")
	seed := flag.Uint64("seed", 1, "random seed")
	lat := flag.Float64("lat", 41.59, "center latitude")
	lon := flag.Float64("lon", -93.62, "center longitude")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	today, err := time.Parse(domain.DateLayout, *todayStr)
	if err != nil {
		return fmt.Errorf("invalid -today: %w", err)
	}

	fx := fixture.Generate(fixture.GenerateOptions{
		Fields:       *fields,
		HistoryDays:  *history,
		ForecastDays: *forecast,
		Today:        today,
		Seed:         *seed,
		Center:       domain.Location{Lat: *lat, Lon: *lon},
	})
	if err := fx.Save(*out); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s (%d fields)", *out, len(fx.Fields))

	printStats(fx)
	return nil
}

func printStats(fx *fixture.Fixture) {
	type stat struct {
		id       string
		rainDays int
		rainIn   float64
	}
	stats := make([]stat, 0, len(fx.Fields))
	for _, id := range fx.FieldIDs() {
		s := stat{id: id}
		for _, row := range fx.Weather[id].History {
			if row.RainIn > 0 {
				s.rainDays++
				s.rainIn += row.RainIn
			}
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].rainIn > stats[j].rainIn })

	fmt.Println()
	fmt.Printf("  %-10s %9s %9s\n", "field", "rain days", "rain in")
	for _, s := range stats {
		fmt.Printf("  %-10s %9d %9.2f\n", s.id, s.rainDays, s.rainIn)
	}
}
