package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/ledger"
	"github.com/jacekv/minisol/rpc"
	"github.com/jacekv/minisol/snapshot"

	_ "github.com/jacekv/minisol/programs/calculator"
	_ "github.com/jacekv/minisol/programs/escrow"
	_ "github.com/jacekv/minisol/programs/greeting"
	_ "github.com/jacekv/minisol/programs/system"
	_ "github.com/jacekv/minisol/programs/token"
)

func main() {
	fs := flag.NewFlagSet("minisol-ledgerd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:8899", "listen address")
	snapshotDir := fs.String("snapshot-dir", "", "directory for snapshot blocks (empty disables snapshots)")
	restore := fs.String("restore", "", "snapshot CID to restore on startup (requires --snapshot-dir)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[1:])

	logger := newLogger(*debug)
	defer logger.Sync()

	l := ledger.New()

	var store *blockstore.FSStore
	if *snapshotDir != "" {
		var err error
		store, err = blockstore.NewFS(*snapshotDir)
		if err != nil {
			logger.Fatal("open snapshot store", zap.String("dir", *snapshotDir), zap.Error(err))
		}
	}

	if *restore != "" {
		if store == nil {
			logger.Fatal("--restore requires --snapshot-dir")
		}
		id, err := cid.Decode(*restore)
		if err != nil {
			logger.Fatal("invalid --restore CID", zap.String("cid", *restore), zap.Error(err))
		}
		if err := snapshot.Restore(store, l, id); err != nil {
			logger.Fatal("restore snapshot", zap.String("cid", *restore), zap.Error(err))
		}
		logger.Info("restored snapshot",
			zap.String("cid", *restore),
			zap.Uint64("slot", l.Slot()),
			zap.String("blockhash", l.LatestBlockhash().String()))
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", *listen), zap.Error(err))
	}

	s := grpc.NewServer()
	rpc.RegisterLedgerServer(s, &rpc.Server{Ledger: l})

	logger.Info("minisol-ledgerd listening",
		zap.String("addr", lis.Addr().String()),
		zap.Uint64("slot", l.Slot()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		s.GracefulStop()
	}

	if store != nil {
		id, manifest, err := snapshot.Capture(store, l)
		if err != nil {
			logger.Error("capture snapshot", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("captured snapshot",
			zap.String("cid", id.String()),
			zap.Uint64("slot", manifest.Slot),
			zap.String("blockhash", manifest.Blockhash))
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
