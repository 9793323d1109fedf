package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ks "github.com/kardianos/service"

	"eventspool/internal/config"
	"eventspool/internal/logging"
	agentservice "eventspool/internal/service"
)

type program struct {
	cfg    *config.Config
	logger *logging.Logger
	svc    *agentservice.Service
	done   chan struct{}
}

func (p *program) Start(s ks.Service) error {
	svc, err := agentservice.New(p.cfg, p.logger)
	if err != nil {
		return err
	}
	p.svc = svc
	p.done = make(chan struct{})
	// Start should not block
	go func() {
		defer close(p.done)
		if err := svc.Run(); err != nil {
			p.logger.Error("service run error", "err", err)
		}
	}()
	return nil
}

func (p *program) Stop(s ks.Service) error {
	if p.svc == nil {
		return nil
	}
	p.svc.Stop()
	<-p.done
	return nil
}

func main() {
	install := flag.Bool("install", false, "install service")
	uninstall := flag.Bool("uninstall", false, "uninstall service")
	runNow := flag.Bool("run", false, "run in foreground")
	cfgPath := flag.String("config", "", "config file (default: agent.toml in the data directory)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.LoadFile(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Println("config load error:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg)

	svcConfig := &ks.Config{
		Name:        "EventSpool",
		DisplayName: "Event Spool Agent",
		Description: "Collects host events and spools them to the gateway",
	}
	if *cfgPath != "" {
		svcConfig.Arguments = []string{"-config", *cfgPath}
	}

	prg := &program{cfg: cfg, logger: logger}
	s, err := ks.New(prg, svcConfig)
	if err != nil {
		logger.Error("service.New failed", "err", err)
		os.Exit(1)
	}

	if *install {
		if err := s.Install(); err != nil {
			logger.Error("install failed", "err", err)
			os.Exit(1)
		}
		logger.Info("service installed")
		return
	}
	if *uninstall {
		if err := s.Uninstall(); err != nil {
			logger.Error("uninstall failed", "err", err)
			os.Exit(1)
		}
		logger.Info("service uninstalled")
		return
	}
	if *runNow {
		svc, err := agentservice.New(cfg, logger)
		if err != nil {
			logger.Error("service init failed", "err", err)
			os.Exit(1)
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			svc.Stop()
		}()
		if err := svc.Run(); err != nil {
			logger.Error("service run error", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := s.Run(); err != nil {
		logger.Error("service run error", "err", err)
	}
}
