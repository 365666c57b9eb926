// Copyright 2017 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Command poold runs the pool coordination daemon.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cespare/cp"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/ironforge-pool/poolcoordinator/console"
	"github.com/ironforge-pool/poolcoordinator/internal/archive"
	"github.com/ironforge-pool/poolcoordinator/internal/audit"
	"github.com/ironforge-pool/poolcoordinator/internal/config"
	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/internal/header"
	"github.com/ironforge-pool/poolcoordinator/internal/log"
	"github.com/ironforge-pool/poolcoordinator/internal/metrics"
	"github.com/ironforge-pool/poolcoordinator/internal/statusapi"
	"github.com/ironforge-pool/poolcoordinator/internal/target"
	"github.com/ironforge-pool/poolcoordinator/internal/testdouble"
	"github.com/ironforge-pool/poolcoordinator/internal/webhook"
	"github.com/ironforge-pool/poolcoordinator/rpc"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
		Value: "poold.toml",
	}
	ipcPathFlag = cli.StringFlag{
		Name:  "ipcpath",
		Usage: "admin console IPC endpoint (unix socket path / named pipe)",
		Value: "poold.ipc",
	}

	dumpConfigCommand = cli.Command{
		Action:    dumpConfig,
		Name:      "dumpconfig",
		Usage:     "Show configuration values",
		ArgsUsage: "",
		Flags:     []cli.Flag{configFileFlag},
	}
	initCommand = cli.Command{
		Action:    initConfigDir,
		Name:      "init",
		Usage:     "Bootstrap a sample configuration directory",
		ArgsUsage: "<destination directory>",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "poold"
	app.Usage = "mining pool coordination daemon"
	app.Flags = []cli.Flag{configFileFlag, ipcPathFlag}
	app.Commands = []cli.Command{dumpConfigCommand, initCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}
	return config.Dump(os.Stdout, cfg)
}

// initConfigDir seeds dst with the repository's sample configuration tree,
// the way geth's "init" bootstraps a fresh datadir from a genesis template.
func initConfigDir(ctx *cli.Context) error {
	dst := ctx.Args().First()
	if dst == "" {
		return fmt.Errorf("usage: poold init <destination directory>")
	}
	src := "sampleconfig"
	if err := cp.CopyAll(dst, src); err != nil {
		return fmt.Errorf("init: copying sample config: %w", err)
	}
	fmt.Printf("wrote sample configuration to %s\n", dst)
	return nil
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}

	hooks := webhook.New(webhook.Endpoints{
		PoolConnected:      cfg.Webhooks.PoolConnected,
		PoolDisconnected:   cfg.Webhooks.PoolDisconnected,
		PoolSubmittedBlock: cfg.Webhooks.PoolSubmittedBlock,
		PoolStatus:         cfg.Webhooks.PoolStatus,
	})

	upstream := testdouble.NewUpstream()
	server := testdouble.NewServer()
	shares := testdouble.NewShares(0, 0)

	c, err := coordinator.New(coordinator.Config{
		PoolName:       cfg.PoolName,
		PoolDifficulty: target.Difficulty(cfg.PoolDifficulty),
		StatusInterval: time.Duration(cfg.PoolStatusNotificationInterval) * time.Second,
	}, upstream, server, shares, hooks)
	if err != nil {
		return fmt.Errorf("constructing coordinator: %w", err)
	}

	// onConfigChange pushes the mutable subset of a hot-reloaded Config
	// (status interval, webhook endpoints) into the already-running
	// coordinator and notifier, rather than leaving it stranded in
	// Watcher.Current.
	onConfigChange := func(next config.Config) {
		hooks.SetEndpoints(webhook.Endpoints{
			PoolConnected:      next.Webhooks.PoolConnected,
			PoolDisconnected:   next.Webhooks.PoolDisconnected,
			PoolSubmittedBlock: next.Webhooks.PoolSubmittedBlock,
			PoolStatus:         next.Webhooks.PoolStatus,
		})
		c.SetStatusInterval(time.Duration(next.PoolStatusNotificationInterval) * time.Second)
	}

	watcher, err := config.NewWatcher(ctx.String(configFileFlag.Name), cfg, onConfigChange)
	if err != nil {
		log.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Close()
	}

	if cfg.AuditDBPath != "" {
		auditLog, err := audit.Open(cfg.AuditDBPath)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLog.Close()
		c.SetAuditSink(auditLog)
	}

	if cfg.ArchiveConnectionString != "" {
		archiver, err := archive.New(cfg.ArchiveConnectionString)
		if err != nil {
			return fmt.Errorf("configuring block archive: %w", err)
		}
		c.SetBlockArchiver(archiver)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(rootCtx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}

	go feedDemoUpstream(rootCtx, upstream)

	if cfg.InfluxDB.Addr != "" {
		exporter, err := metrics.New(metrics.Config{
			Addr:     cfg.InfluxDB.Addr,
			Database: cfg.InfluxDB.Database,
			Username: cfg.InfluxDB.Username,
			Password: cfg.InfluxDB.Password,
		})
		if err != nil {
			log.Warn("metrics export disabled", "err", err)
		} else {
			defer exporter.Close()
			go runMetricsLoop(rootCtx, exporter, c)
		}
	}

	if cfg.StatusListenAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.StatusListenAddr, statusapi.New(c)); err != nil {
				log.Error("status API server exited", "err", err)
			}
		}()
	}

	go runAdminIPC(rootCtx, ctx.String(ipcPathFlag.Name), c)

	waitForSignal()
	c.Stop()
	c.WaitForStop()
	return nil
}

// feedDemoUpstream drives the coordinator with synthetic block templates on
// a fixed cadence, standing in for a real upstream node connection: the
// wire protocol to an actual full node is out of scope for this repository,
// so this is the daemon's built-in reference backend rather than a
// production integration.
func feedDemoUpstream(ctx context.Context, upstream *testdouble.Upstream) {
	tick := time.NewTicker(15 * time.Second)
	defer tick.Stop()

	prevHash := "00"

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			tgt, err := target.TargetFromDifficulty(target.Difficulty(1 + rand.Intn(1000)))
			if err != nil {
				continue
			}
			tmpl := header.Header{
				PreviousBlockHash: prevHash,
				Target:            tgt.Hex(),
				Timestamp:         time.Now().UnixMilli(),
			}
			upstream.Push(coordinator.UpstreamItem{
				Template: tmpl,
				PreviousBlockInfo: &coordinator.PreviousBlockInfo{
					Target:    tgt.Hex(),
					Timestamp: time.Now().UnixMilli(),
				},
			})
			prevHash = tgt.Hex()[:2]
		}
	}
}

func runMetricsLoop(ctx context.Context, exporter *metrics.Exporter, c *coordinator.Coordinator) {
	tick := time.NewTicker(10 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			exporter.Report(c.GetStatus(ctx, ""))
		}
	}
}

// runAdminIPC serves the line-oriented admin protocol console.New's
// AdminHandler speaks, over a Unix-domain socket. There is no named-pipe
// listener: rpc/ipc_windows.go supplies only the client-side dialer.
func runAdminIPC(ctx context.Context, path string, c *coordinator.Coordinator) {
	os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		log.Warn("admin IPC disabled", "err", err)
		return
	}
	defer l.Close()

	handler := console.AdminHandler{Admin: c}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	if err := rpc.ServeListener(l, handler); err != nil {
		log.Warn("admin IPC listener exited", "err", err)
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
