package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/campusaid/aidmap/internal/adapters/postgres"
	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/pkg/config"
	"github.com/campusaid/aidmap/internal/pkg/logging"
)

const batchSize = 500

// SeedEntry is one request in a seed file. Times are relative to load time
// so a seed file stays useful across days.
type SeedEntry struct {
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Types           []domain.RequestType `json:"types"`
	Tags            []domain.Tag         `json:"tags"`
	Lat             float64              `json:"lat"`
	Lon             float64              `json:"lon"`
	LocationName    string               `json:"location_name"`
	CreatorID       string               `json:"creator_id"`
	People          []string             `json:"people"`
	StartsInMinutes int                  `json:"starts_in_minutes"`
	LastsMinutes    int                  `json:"lasts_minutes"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: seed <file.json> | seed random <count>")
	}

	cfg, err := config.Load("aidmap-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	now := time.Now().UTC().Truncate(time.Second)

	var entries []SeedEntry
	if os.Args[1] == "random" {
		n := 200
		if len(os.Args) > 2 {
			if n, err = strconv.Atoi(os.Args[2]); err != nil || n <= 0 {
				log.Fatalf("count must be a positive integer, got %q", os.Args[2])
			}
		}
		entries = randomEntries(n, domain.GeoPoint{Lat: cfg.Campus.Lat, Lon: cfg.Campus.Lon})
	} else {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatalf("read seed file: %v", err)
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Fatalf("parse seed file: %v", err)
		}
	}

	reqs := make([]domain.Request, 0, len(entries))
	for i, e := range entries {
		r := e.toRequest(now)
		if err := r.Validate(); err != nil {
			log.Fatalf("entry %d: %v", i, err)
		}
		reqs = append(reqs, r)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewRequestRepo(db)

	start := time.Now()
	for lo := 0; lo < len(reqs); lo += batchSize {
		hi := min(lo+batchSize, len(reqs))
		if err := repo.UpsertBatch(ctx, reqs[lo:hi]); err != nil {
			log.Fatalf("upsert batch %d-%d: %v", lo, hi, err)
		}
		slog.Info("batch stored", "from", lo, "to", hi)
	}

	fmt.Printf("seeded %d requests in %s\n", len(reqs), time.Since(start).Round(time.Millisecond))
}

func (e SeedEntry) toRequest(now time.Time) domain.Request {
	lasts := e.LastsMinutes
	if lasts <= 0 {
		lasts = 120
	}
	people := e.People
	if people == nil {
		people = []string{}
	}
	start := now.Add(time.Duration(e.StartsInMinutes) * time.Minute)

	r := domain.Request{
		ID:             uuid.NewString(),
		Title:          e.Title,
		Description:    e.Description,
		Types:          e.Types,
		Tags:           e.Tags,
		Location:       domain.GeoPoint{Lat: e.Lat, Lon: e.Lon},
		LocationName:   e.LocationName,
		StartTime:      start,
		ExpirationTime: start.Add(time.Duration(lasts) * time.Minute),
		People:         people,
		CreatorID:      e.CreatorID,
		CreatedAt:      now,
	}
	r.Status = r.ViewStatus(now)
	return r
}

var randomTypes = []domain.RequestType{
	domain.TypeStudying, domain.TypeStudyGroup, domain.TypeHangingOut, domain.TypeEating,
	domain.TypeSport, domain.TypeHardware, domain.TypeLostAndFound, domain.TypeOther,
}

// randomEntries scatters n requests around center, most within a couple of
// kilometres and a few hot spots with several requests each.
func randomEntries(n int, center domain.GeoPoint) []SeedEntry {
	const metersPerDegLat = 111_320.0
	metersPerDegLon := metersPerDegLat * math.Cos(center.Lat*math.Pi/180)

	out := make([]SeedEntry, n)
	for i := range out {
		dist := math.Abs(rand.NormFloat64()) * 800
		if i%5 == 0 {
			dist = rand.Float64() * 30 // hot spot
		}
		bearing := rand.Float64() * 2 * math.Pi

		t := randomTypes[rand.IntN(len(randomTypes))]
		out[i] = SeedEntry{
			Title:           fmt.Sprintf("%s request #%d", t, i+1),
			Types:           []domain.RequestType{t},
			Lat:             center.Lat + dist*math.Cos(bearing)/metersPerDegLat,
			Lon:             center.Lon + dist*math.Sin(bearing)/metersPerDegLon,
			CreatorID:       fmt.Sprintf("seed-user-%d", rand.IntN(25)),
			StartsInMinutes: rand.IntN(120) - 60,
			LastsMinutes:    30 + rand.IntN(240),
		}
	}
	return out
}
