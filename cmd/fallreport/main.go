// Command fallreport runs the fall-detection engine over a keypoint stream.
//
// It replays a JSONL file of pose-model keypoints (or accepts live frames
// over HTTP when -listen is set), records per-frame costs and fall events to
// sqlite, and serves a small monitoring API with cost-series charts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/fall.report/internal/config"
	"github.com/banshee-data/fall.report/internal/db"
	"github.com/banshee-data/fall.report/internal/pose/l1keypoints"
	"github.com/banshee-data/fall.report/internal/pose/monitor"
	"github.com/banshee-data/fall.report/internal/pose/pipeline"
	"github.com/banshee-data/fall.report/internal/timeutil"
	"github.com/banshee-data/fall.report/internal/units"
	"github.com/banshee-data/fall.report/internal/version"
)

var (
	inputPath     = flag.String("input", "", "JSONL keypoint stream to replay (omit to run ingest-only with -listen)")
	configPath    = flag.String("config", "", "Tuning config JSON (defaults applied for omitted fields)")
	method        = flag.String("method", "", "Cost method override: Division, MeanDifference, DifferenceMean, DifferenceSum, Mean")
	threshold     = flag.Float64("threshold", 0, "Fall threshold override (0 keeps the method default)")
	cooldown      = flag.Int("cooldown", -1, "Cooldown frames override (-1 keeps the config value)")
	dbFile        = flag.String("db", "fall_data.db", "Sqlite database file")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Schema migrations directory")
	listen        = flag.String("listen", "", "Monitor API listen address (e.g. :8080); empty disables")
	realtime      = flag.Bool("realtime", false, "Pace replay by frame timestamps")
	displayUnits  = flag.String("units", units.Degrees, "Angle units for the run summary: "+units.GetValidUnitsString())
	verbose       = flag.Bool("verbose", false, "Enable per-frame diagnostic logging")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("fallreport %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if !units.IsValid(*displayUnits) {
		log.Fatalf("invalid -units %q; valid: %s", *displayUnits, units.GetValidUnitsString())
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", *dbFile, err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	source := *inputPath
	if source == "" {
		source = "http-ingest"
	}
	recorder, err := db.NewRunRecorder(database, source, cfg.GetMethod(), cfg.GetThreshold())
	if err != nil {
		log.Fatalf("failed to create run: %v", err)
	}

	detector, err := pipeline.NewDetector(cfg, recorder)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	log.Printf("Starting %s run=%s db=%s", detector, recorder.RunID(), *dbFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:  *listen,
			Detector: detector,
			DB:       database,
			RunID:    recorder.RunID(),
		})
		if err := ws.Start(ctx); err != nil {
			log.Fatalf("failed to start monitor server: %v", err)
		}
	}

	if *inputPath == "" {
		if *listen == "" {
			log.Fatal("nothing to do: provide -input and/or -listen")
		}
		<-ctx.Done()
		printSummary(detector)
		return
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("failed to open input %s: %v", *inputPath, err)
	}
	defer f.Close()

	err = pipeline.Replay(l1keypoints.NewReader(f), detector, timeutil.RealClock{}, *realtime, func(res pipeline.Result) {
		if res.IsFall {
			log.Printf("FALL frame=%d cost=%.2f", res.FrameIndex, res.Smoothed.Value)
		}
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	printSummary(detector)

	// With a listener up, keep serving query endpoints after replay ends.
	if *listen != "" {
		log.Printf("Replay complete; monitor still serving on %s (Ctrl-C to exit)", *listen)
		<-ctx.Done()
	}
}

// loadConfig loads the tuning file (when given) and applies flag overrides.
func loadConfig() (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *method != "" {
		cfg.Method = method
	}
	if *threshold > 0 {
		cfg.Threshold = threshold
	}
	if *cooldown >= 0 {
		cfg.CooldownFrames = cooldown
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printSummary(detector *pipeline.Detector) {
	stats := detector.Stats()
	thr := units.ConvertAngle(detector.Threshold(), *displayUnits)
	fmt.Printf("frames=%d sampled=%d dropped=%d falls=%d (method=%s threshold=%.3f %s)\n",
		stats.FramesSeen, stats.FramesSampled, stats.FramesDropped, stats.FallsDetected,
		detector.Method(), thr, *displayUnits)
}
