package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hotshot-go/hotshot/config"
	"github.com/hotshot-go/hotshot/model/chain"
	"github.com/hotshot-go/hotshot/module/irrecoverable"
	"github.com/hotshot-go/hotshot/module/metrics"
	"github.com/hotshot-go/hotshot/module/util"
)

const shutdownTimeout = 30 * time.Second

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	network, err := newLocalNetwork(signalerCtx, log, cfg, metrics.NewConsensusCollector(registry))
	if err != nil {
		return err
	}
	defer network.Close()

	observed := network.nodes[0]
	server := metrics.NewServer(log, cfg.MetricsPort, registry, func() (uint64, uint64) {
		consensus := observed.Consensus()
		return consensus.CurView(), consensus.DecidedLeaf().View
	}, cfg.Profiler)

	server.Start(signalerCtx)
	for _, n := range network.nodes {
		n.Start(signalerCtx)
	}
	components := append(network.components(), server)
	if err := util.WaitClosed(ctx, util.AllReady(components...)); err == nil {
		log.Info().Int("nodes", len(network.nodes)).Msg("sequencer network started")
		if flagTxInterval > 0 {
			go submitTransactions(ctx, log, network, flagTxInterval, flagTxSize)
		}
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("irrecoverable error, shutting down")
		stop()
	}
	select {
	case <-util.AllDone(components...):
	case <-time.After(shutdownTimeout):
		return errors.New("timed out waiting for shutdown")
	}
	return nil
}

// submitTransactions feeds random transactions to the nodes in turn.
func submitTransactions(ctx context.Context, log zerolog.Logger, network *localNetwork, interval time.Duration, size int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tx := make([]byte, size)
		_, _ = rand.Read(tx)
		target := network.nodes[i%len(network.nodes)]
		if err := target.SubmitTransactions(ctx, []chain.Transaction{tx}); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int("transaction", i).Msg("could not submit transaction")
		}
	}
}
