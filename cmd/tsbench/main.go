// Command tsbench exercises the tscore engine end to end outside of
// any host process: it creates a few series, wires a compaction rule,
// ingests synthetic load, and runs range queries against the result,
// reporting wall-clock timing for each phase.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	"github.com/ledgerwatch/tscore/command"
	"github.com/ledgerwatch/tscore/compaction"
	"github.com/ledgerwatch/tscore/config"
	"github.com/ledgerwatch/tscore/rangeiter"
)

var (
	seriesFlag  = cli.IntFlag{Name: "series", Value: 100, Usage: "number of series to create"}
	samplesFlag = cli.IntFlag{Name: "samples", Value: 10000, Usage: "samples to ingest per series"}
	bucketFlag  = cli.Int64Flag{Name: "bucket-ms", Value: 60000, Usage: "compaction bucket width in milliseconds"}
)

func main() {
	app := cli.NewApp()
	app.Name = "tsbench"
	app.Usage = "embedded time-series engine ingest/query benchmark harness"
	app.Flags = []cli.Flag{seriesFlag, samplesFlag, bucketFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Error("tsbench failed", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	nSeries := c.Int("series")
	nSamples := c.Int("samples")
	bucketMs := c.Int64("bucket-ms")

	db := command.NewDatabase(config.DefaultGlobal(), nil)

	t0 := time.Now()
	for i := 0; i < nSeries; i++ {
		key := fmt.Sprintf("bench:%d", i)
		if err := db.Create(key, command.CreateOptions{
			Labels: map[string]string{"job": "tsbench", "shard": fmt.Sprintf("%d", i%8)},
		}); err != nil {
			return err
		}
		destKey := key + ":1m"
		if err := db.Create(destKey, command.CreateOptions{}); err != nil {
			return err
		}
		if err := db.CreateRule(key, destKey, compaction.Rule{Aggregator: "avg", BucketMs: bucketMs}); err != nil {
			return err
		}
	}
	log.Info("created series", "count", nSeries*2, "elapsed", time.Since(t0))

	t0 = time.Now()
	for i := 0; i < nSeries; i++ {
		key := fmt.Sprintf("bench:%d", i)
		ts := make([]int64, nSamples)
		vals := make([]float64, nSamples)
		for j := 0; j < nSamples; j++ {
			ts[j] = int64(j) * 1000
			vals[j] = float64(j%1000) / 10
		}
		if _, err := db.AddBulk(key, command.BulkPayload{Timestamps: ts, Values: vals}, command.AddOptions{}); err != nil {
			return err
		}
	}
	ingested := nSeries * nSamples
	elapsed := time.Since(t0)
	log.Info("ingested samples", "count", ingested, "elapsed", elapsed, "samples/sec", float64(ingested)/elapsed.Seconds())

	t0 = time.Now()
	queried := 0
	for i := 0; i < nSeries; i++ {
		key := fmt.Sprintf("bench:%d", i)
		points, err := db.Range(key, 0, int64(nSamples)*1000, false, false, command.RangeOptions{
			Aggregation: &rangeiter.AggregationSpec{Aggregator: "avg", BucketMs: bucketMs},
		})
		if err != nil {
			return err
		}
		queried += len(points)
	}
	log.Info("queried range aggregation", "points", queried, "elapsed", time.Since(t0))

	return nil
}
