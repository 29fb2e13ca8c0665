package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"mimestream"
	"mimestream/internal/blobstorage"
	"mimestream/internal/conf"
	"mimestream/internal/db"
	"mimestream/internal/mbox"
	"mimestream/internal/store"
)

func main() {
	// Command-line flags
	configPath := flag.String("config", "/etc/mimestream/mimestream.yaml", "Path to configuration file")
	dbPath := flag.String("db", "", "Path to message database (overrides config)")
	chunkSize := flag.Int("chunk", 0, "Override read chunk size in bytes (overrides config)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("No input files given")
	}

	log.Println("Starting mimestore ingest...")

	cfg, err := conf.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v", *configPath, err)
		log.Println("Continuing with default configuration")
		cfg = conf.DefaultConfig()
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *chunkSize > 0 {
		cfg.Ingest.ChunkSize = *chunkSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Printf("Message database initialized: %s", cfg.Database.Path)

	blobs, err := blobstorage.New(ctx, cfg.BlobStorage)
	if err != nil {
		log.Printf("Warning: Failed to initialize S3 blob storage: %v", err)
		log.Println("Falling back to local SQLite storage")
		blobs, _ = blobstorage.New(ctx, blobstorage.Config{Enabled: false})
	} else if blobs.IsEnabled() {
		log.Printf("S3 blob storage initialized (bucket: %s)", cfg.BlobStorage.Bucket)
	} else {
		log.Println("S3 blob storage is disabled in config, using local SQLite storage")
	}

	msgStore := store.New(database, blobs, cfg.Ingest.BlobThreshold)

	var opts []mimestream.Option
	if cfg.Ingest.ChunkSize > 0 {
		opts = append(opts, mimestream.WithChunkSize(cfg.Ingest.ChunkSize))
	}

	var stored atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Ingest.Workers > 0 {
		g.SetLimit(cfg.Ingest.Workers)
	}

	for _, name := range files {
		name := name
		g.Go(func() error {
			n, err := ingestFile(ctx, msgStore, name, cfg.Ingest.MaxMessageSize, opts)
			if err != nil {
				return err
			}
			stored.Add(int64(n))
			log.Printf("Stored %d message(s) from %s", n, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal("Ingest failed:", err)
	}
	log.Printf("Done: %d message(s) stored", stored.Load())
}

func ingestFile(ctx context.Context, msgStore *store.Store, name string, maxSize int64, opts []mimestream.Option) (int, error) {
	f, err := os.Open(name) // #nosec G304 -- paths come from the command line
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing %s: %v", name, err)
		}
	}()

	scanner := mbox.NewScanner(f)
	n := 0
	for scanner.Next() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if maxSize > 0 && int64(len(scanner.Message())) > maxSize {
			log.Printf("Skipping oversized message in %s (%d bytes)", name, len(scanner.Message()))
			continue
		}
		msg, err := mimestream.ParseMessage(mimestream.NewBytesSource(scanner.Message()), opts...)
		if err != nil {
			return n, err
		}
		if _, err := msgStore.SaveMessage(ctx, msg, name); err != nil {
			return n, err
		}
		n++
	}
	return n, scanner.Err()
}
