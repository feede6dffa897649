// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwcoin/node/blockchain"
	"github.com/mwcoin/node/config"
	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/p2p"
	"github.com/mwcoin/node/txpool"
	"github.com/sirupsen/logrus"
)

func init() {
	// Output to stdout instead of the default stderr
	// Can be any io.Writer, see below for File example
	logrus.SetOutput(os.Stdout)

	// Log the debug severity or above.
	logrus.SetLevel(logrus.DebugLevel)
}

func main() {
	configPath := flag.String("config", "", "path to a node config file (defaults built in if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.Fatal("loading config: ", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatal("invalid config: ", err)
	}

	logrus.Info("Starting, data dir ", cfg.DataDir)

	engine, err := blockchain.Open(cfg.DataDir, &consensus.Testnet1)
	if err != nil {
		logrus.Fatal("opening chain engine: ", err)
	}
	defer engine.Close()

	pool := txpool.New(cfg.PoolConfig(), engine.TxHashSet(), nil)
	engine.SetPoolReconciler(pool)

	listenAddr, err := net.ResolveTCPAddr("tcp", cfg.ListenAddr)
	if err != nil {
		logrus.Fatal("resolving listen addr: ", err)
	}

	sync := p2p.NewSyncer(engine, pool, listenAddr, cfg.Capabilities)
	pool.SetRelay(sync.Manager())

	ln, err := net.ListenTCP("tcp", listenAddr)
	if err != nil {
		logrus.Fatal("listening on ", cfg.ListenAddr, ": ", err)
	}
	defer ln.Close()

	go sync.Serve(ln)
	sync.Start(cfg.SeedPeers)

	logrus.Info("listening on ", cfg.ListenAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	sync.Stop()
}
