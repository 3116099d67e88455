package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotblauer/catmode/catz"
	"github.com/rotblauer/catmode/stream"
	"github.com/rotblauer/catmode/types/trip"
)

// GeoJSONFile reads trips from a file of newline-delimited GeoJSON LineString features,
// gzipped or not. Each line may also be a FeatureCollection.
// Features carry their label in the Mode property and fix times, epoch millis, in UnixTimes.
type GeoJSONFile struct {
	Path   string
	Logger *slog.Logger
}

func (g GeoJSONFile) Trips(ctx context.Context) ([]*trip.Trip, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.With("d", "dataset", "path", g.Path)
	}
	r, err := catz.Open(g.Path)
	if err != nil {
		return nil, fmt.Errorf("open trips: %w", err)
	}
	defer r.Close()

	meter := stream.NewTickMeter("Read trips", 5*time.Second, logger)
	defer meter.Stop()

	var readErr error
	skipped := 0
	raws := stream.NDJSON[json.RawMessage](ctx, r, func(err error) {
		readErr = err
	})
	var out []*trip.Trip
	for raw := range raws {
		trips, err := trip.Decode(raw)
		if err != nil {
			skipped++
			logger.Debug("Skipping undecodable line", "error", err)
			continue
		}
		meter.Mark(int64(len(trips)))
		out = append(out, trips...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, fmt.Errorf("read trips: %w", readErr)
	}
	logger.Info("Read trips", "n", len(out), "skipped", skipped, "gzip", r.IsGzip())
	return out, nil
}
