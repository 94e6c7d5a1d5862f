package command

import (
	"fmt"

	"github.com/pixil98/go-arena/internal/arena"
	"github.com/pixil98/go-arena/internal/console"
	"github.com/pixil98/go-arena/internal/listener"
	"github.com/pixil98/go-arena/internal/messaging"
	"github.com/pixil98/go-arena/internal/notify"
	"github.com/pixil98/go-arena/internal/worker"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config any) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	eng, err := cfg.Engine.buildEngine(natsServer)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	catalog := notify.DefaultCatalog()
	if cfg.Messages.Catalog != "" {
		catalog, err = notify.LoadCatalog(cfg.Messages.Catalog)
		if err != nil {
			return nil, fmt.Errorf("loading message catalog: %w", err)
		}
	}

	hub := console.NewHub()
	notifier := notify.NewNotifier(catalog, hub, messaging.NewNotificationPublisher(natsServer))

	arenaCfg, err := cfg.buildArenaConfig()
	if err != nil {
		return nil, fmt.Errorf("building arena config: %w", err)
	}
	pool := worker.NewPool(cfg.Workers)
	a := arena.New(arenaCfg, eng, notifier, arena.WithExecutor(pool))

	consoleOpts := []console.ConsoleOpt{console.WithAdmins(cfg.Console.Admins...)}
	if cfg.Console.Banner != "" {
		consoleOpts = append(consoleOpts, console.WithBanner(cfg.Console.Banner))
	}
	cm := listener.NewConnectionManager(
		console.NewConsole(a, hub, consoleOpts...),
		listener.WithMaxConnections(cfg.Console.MaxConnections),
	)

	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		w, err := l.buildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = w
	}

	workers := service.WorkerList{
		"nats":      natsServer,
		"events":    messaging.NewEventSubscriber(natsServer, a),
		"pool":      pool,
		"arena":     a,
		"listeners": &listeners,
	}
	if cfg.Scoreboard.Addr != "" {
		workers["scoreboard"] = cfg.Scoreboard.buildScoreboard(a)
	}

	return workers, nil
}
