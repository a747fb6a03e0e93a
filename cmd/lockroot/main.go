package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lockroot/lockroot-go/pkg/config"
	"github.com/lockroot/lockroot-go/pkg/logger"
	"github.com/lockroot/lockroot-go/pkg/merkle"
	"github.com/lockroot/lockroot-go/pkg/persistence"
	"github.com/lockroot/lockroot-go/pkg/persistence/badger"
	"github.com/lockroot/lockroot-go/pkg/persistence/memory"
	"github.com/lockroot/lockroot-go/pkg/persistence/redis"
	"github.com/lockroot/lockroot-go/pkg/snapshot"
	"github.com/lockroot/lockroot-go/pkg/util"
	"github.com/lockroot/lockroot-go/pkg/watcher"
)

func main() {
	app := &cli.App{
		Name:  "lockroot",
		Usage: "Lockfile dependency-set commitments with Merkle inclusion proofs",
		Description: `Commits a package manager lockfile's full dependency set to a single
32-byte Merkle root, so reproducibility across builds reduces to comparing
two short digests.

Supported lockfiles: package-lock.json, npm-shrinkwrap.json, requirements.txt.

Snapshots are stored in a pluggable backend (badger for local durable state,
redis for sharing across CI runners, memory for testing). Inclusion proofs
let a holder of just one dependency record, a proof and the committed root
check membership without the full dependency set.`,
		Version: "1.0.0",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
		}, storeFlags...),
		Commands: []*cli.Command{
			{
				Name:   "root",
				Usage:  "Compute and print a lockfile's root digest (no store access)",
				Flags:  []cli.Flag{lockfileFlag},
				Action: runRoot,
			},
			{
				Name:   "commit",
				Usage:  "Commit a lockfile snapshot and compare it with the previous one",
				Flags:  []cli.Flag{lockfileFlag},
				Action: runCommit,
			},
			{
				Name:   "snapshots",
				Usage:  "List stored snapshots",
				Action: runSnapshots,
			},
			{
				Name:  "prove",
				Usage: "Generate an inclusion proof for one dependency of the latest snapshot",
				Flags: []cli.Flag{
					lockfileFlag,
					&cli.StringFlag{Name: "name", Usage: "Dependency name", Required: true},
					&cli.StringFlag{Name: "dep-version", Usage: "Dependency version", Required: true},
					&cli.StringFlag{Name: "integrity", Usage: "Dependency integrity digest (optional)"},
					&cli.StringFlag{Name: "resolved", Usage: "Dependency resolved URL (optional)"},
				},
				Action: runProve,
			},
			{
				Name:  "verify",
				Usage: "Verify an inclusion proof against a claimed root (no store access)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "proof",
						Usage:    "Path to a proof document produced by 'prove' ('-' for stdin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Claimed root digest in hex (defaults to the root recorded in the proof document)",
					},
				},
				Action: runVerify,
			},
			{
				Name:   "watch",
				Usage:  "Watch a lockfile and recommit on every change",
				Flags:  []cli.Flag{lockfileFlag},
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

var lockfileFlag = &cli.StringFlag{
	Name:     "lockfile",
	Aliases:  []string{"l"},
	Usage:    "Path to the lockfile",
	Required: true,
}

var storeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "store",
		Value:   "badger",
		Usage:   "Snapshot store backend: memory, badger, redis",
		EnvVars: []string{config.EnvStoreType},
	},
	&cli.StringFlag{
		Name:    "data-dir",
		Value:   ".lockroot",
		Usage:   "Badger database directory",
		EnvVars: []string{config.EnvDataDir},
	},
	&cli.StringFlag{
		Name:    "redis-address",
		Usage:   "Redis server address (host:port)",
		EnvVars: []string{config.EnvRedisAddress},
	},
	&cli.StringFlag{
		Name:    "redis-password",
		Usage:   "Redis password",
		EnvVars: []string{config.EnvRedisPassword},
	},
	&cli.IntFlag{
		Name:    "redis-db",
		Usage:   "Redis database number (0-15)",
		EnvVars: []string{config.EnvRedisDB},
	},
}

// parseConfig builds and validates the store configuration from flags/environment.
func parseConfig(c *cli.Context) (*config.Config, error) {
	storeType, err := config.ParseStoreType(c.String("store"))
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		StoreType:     storeType,
		DataDir:       c.String("data-dir"),
		RedisAddress:  c.String("redis-address"),
		RedisPassword: c.String("redis-password"),
		RedisDB:       c.Int("redis-db"),
		Verbose:       c.Bool("verbose"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger from the verbose flag.
func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
}

// openStore opens the configured snapshot store backend.
func openStore(cfg *config.Config, zl *zap.Logger) (persistence.ISnapshotStore, error) {
	switch cfg.StoreType {
	case config.StoreTypeMemory:
		return memory.NewMemoryStore(), nil
	case config.StoreTypeBadger:
		return badger.NewBadgerStore(cfg.DataDir, zl)
	case config.StoreTypeRedis:
		return redis.NewRedisStore(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, zl)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}

// withService opens the store, runs fn and closes the store afterwards.
func withService(c *cli.Context, fn func(svc *snapshot.Service, store persistence.ISnapshotStore, zl *zap.Logger) error) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	zl, err := newLogger(c)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	store, err := openStore(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("snapshot store unhealthy: %w", err)
	}

	return fn(snapshot.NewService(store, zl), store, zl)
}

func runRoot(c *cli.Context) error {
	zl, err := newLogger(c)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	svc := snapshot.NewService(nil, zl)
	root, count, err := svc.Root(c.String("lockfile"))
	if err != nil {
		return err
	}

	fmt.Printf("%s  %d dependencies\n", util.EncodeDigest(root), count)
	return nil
}

func runCommit(c *cli.Context) error {
	return withService(c, func(svc *snapshot.Service, _ persistence.ISnapshotStore, _ *zap.Logger) error {
		result, err := svc.Commit(c.String("lockfile"))
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot %s\n", result.Snapshot.ID)
		fmt.Printf("  Lockfile:      %s (%s)\n", result.Snapshot.LockfilePath, result.Snapshot.PackageManager)
		fmt.Printf("  Dependencies:  %d\n", result.Snapshot.LeafCount)
		fmt.Printf("  Root:          %s\n", result.Snapshot.RootHex())
		fmt.Printf("  File digest:   %s\n", result.Snapshot.LockfileDigestHex())

		switch {
		case result.Previous == nil:
			fmt.Printf("  Status:        first snapshot for this lockfile\n")
		case result.Reproducible:
			fmt.Printf("  Status:        reproducible (matches %s)\n", result.Previous.ID)
		default:
			fmt.Printf("  Status:        DRIFTED (previous root %s)\n", result.Previous.RootHex())
			return cli.Exit("", 1)
		}

		return nil
	})
}

func runSnapshots(c *cli.Context) error {
	return withService(c, func(_ *snapshot.Service, store persistence.ISnapshotStore, _ *zap.Logger) error {
		snapshots, err := store.ListSnapshots()
		if err != nil {
			return err
		}

		if len(snapshots) == 0 {
			fmt.Println("No snapshots stored")
			return nil
		}

		for _, s := range snapshots {
			fmt.Printf("%s  %s  %-4s  %4d deps  %s\n",
				s.ID, s.RootHex(), s.PackageManager, s.LeafCount, s.LockfilePath)
		}
		return nil
	})
}

// proofDocument is the portable JSON rendering of an inclusion proof.
// Digests are lowercase hex at this text boundary.
type proofDocument struct {
	SnapshotID string             `json:"snapshotId"`
	Lockfile   string             `json:"lockfile"`
	Dependency *merkle.Dependency `json:"dependency"`
	Leaf       string             `json:"leaf"`
	Root       string             `json:"root"`
	Steps      []proofStepDoc     `json:"steps"`
}

type proofStepDoc struct {
	Sibling string `json:"sibling"`
	Side    string `json:"side"`
}

func runProve(c *cli.Context) error {
	return withService(c, func(svc *snapshot.Service, _ persistence.ISnapshotStore, _ *zap.Logger) error {
		dep := &merkle.Dependency{
			Name:      c.String("name"),
			Version:   c.String("dep-version"),
			Integrity: c.String("integrity"),
			Resolved:  c.String("resolved"),
		}

		proof, snap, ok, err := svc.Prove(c.String("lockfile"), dep)
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit(fmt.Sprintf("dependency %s@%s is not part of snapshot %s", dep.Name, dep.Version, snap.ID), 1)
		}

		doc := proofDocument{
			SnapshotID: snap.ID,
			Lockfile:   snap.LockfilePath,
			Dependency: dep,
			Leaf:       util.EncodeDigest(proof.Leaf),
			Root:       snap.RootHex(),
			Steps:      make([]proofStepDoc, len(proof.Steps)),
		}
		for i, step := range proof.Steps {
			doc.Steps[i] = proofStepDoc{
				Sibling: util.EncodeDigest(step.Sibling),
				Side:    string(step.Side),
			}
		}

		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal proof: %w", err)
		}

		fmt.Println(string(out))
		return nil
	})
}

func runVerify(c *cli.Context) error {
	var raw []byte
	var err error

	if path := c.String("proof"); path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read proof document: %w", err)
	}

	var doc proofDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode proof document: %w", err)
	}
	if doc.Dependency == nil {
		return fmt.Errorf("proof document has no dependency record")
	}

	rootHex := c.String("root")
	if rootHex == "" {
		rootHex = doc.Root
	}
	root, err := util.DecodeDigest(rootHex)
	if err != nil {
		return fmt.Errorf("invalid root digest: %w", err)
	}

	proof := &merkle.InclusionProof{
		Leaf:  merkle.HashDependency(doc.Dependency),
		Steps: make([]merkle.ProofStep, len(doc.Steps)),
	}
	for i, step := range doc.Steps {
		sibling, err := util.DecodeDigest(step.Sibling)
		if err != nil {
			return fmt.Errorf("invalid sibling digest in step %d: %w", i, err)
		}
		proof.Steps[i] = merkle.ProofStep{
			Sibling: sibling,
			Side:    merkle.ProofSide(step.Side),
		}
	}

	if !merkle.VerifyProof(proof.Leaf, proof, root) {
		return cli.Exit(fmt.Sprintf("INVALID: %s@%s is not committed by root %s",
			doc.Dependency.Name, doc.Dependency.Version, util.EncodeDigest(root)), 1)
	}

	fmt.Printf("OK: %s@%s is committed by root %s\n",
		doc.Dependency.Name, doc.Dependency.Version, util.EncodeDigest(root))
	return nil
}

func runWatch(c *cli.Context) error {
	return withService(c, func(svc *snapshot.Service, _ persistence.ISnapshotStore, zl *zap.Logger) error {
		w, err := watcher.NewWatcher(c.String("lockfile"), svc, zl)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := w.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
}
