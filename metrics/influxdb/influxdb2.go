package influxdb

import (
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/trainer"
	"github.com/rotblauer/catmode/types/mode"
)

const Measurement = "catmode_training"

// Point renders one training snapshot.
// Snapshots without a timestamp of their own are stamped at.
func Point(s trainer.State, at time.Time) *write.Point {
	p := influxdb2.NewPointWithMeasurement(Measurement).
		SetTime(at).
		AddTag("run", s.RunID).
		AddTag("strategy", s.Strategy.String()).
		AddTag("status", s.Status.String()).
		AddField("iteration", s.Iteration).
		AddField("epoch", s.Epoch).
		AddField("accuracy", s.Accuracy).
		AddField("total_samples", s.TotalSamples).
		AddField("correct_samples", s.CorrectSamples).
		AddField("errors", s.Errors).
		AddField("elapsed_s", s.Elapsed.Seconds())

	for _, m := range mode.All {
		if n, ok := s.SampleCounts[m]; ok {
			p.AddField(fmt.Sprintf("samples_%s", m), n)
		}
		if model := s.Models[m]; model != nil {
			p.AddField(fmt.Sprintf("confidence_%s", m), model.Confidence)
			p.AddField(fmt.Sprintf("threshold_%s", m), model.ConfidenceThreshold)
		}
	}
	return p
}

// ExportTrainingStates posts training snapshots to an InfluxDB Write API.
// Snapshots are stamped from start by their elapsed run time.
// The Write API buffers and flushes; the last error encountered is returned.
func ExportTrainingStates(start time.Time, states []trainer.State) error {
	if params.INFLUXDB_URL == "" {
		return fmt.Errorf("INFLUXDB_URL not set")
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors must be drained or the writer blocks.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range states {
		writeAPI.WritePoint(Point(s, start.Add(s.Elapsed)))
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
