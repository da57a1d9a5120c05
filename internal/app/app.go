// Package app wires configuration into the running components shared by the
// binary's modes: connections, the gateway tiers and the change feed.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"order-dashboard/internal/common/config"
	"order-dashboard/internal/common/db"
	"order-dashboard/internal/common/logger"
	"order-dashboard/internal/common/mq"
	"order-dashboard/internal/feed"
	"order-dashboard/internal/gateway"
	"order-dashboard/internal/lifecycle"
	"order-dashboard/internal/notify"
	"order-dashboard/internal/source"
)

// Stack holds the live connections of one process. When the store is down
// at startup Pool dials lazily, so each call either reaches it or falls
// through to the next tier. MQ is nil when the broker could not be reached.
type Stack struct {
	Config config.App
	Logger *logger.Logger
	Pool   *pgxpool.Pool
	MQ     *mq.Client

	name string
}

// Open connects to what the configuration asks for. When requireDB is set a
// store failure is returned instead of tolerated.
func Open(ctx context.Context, cfg config.App, name string, lg *logger.Logger, requireDB bool) (*Stack, error) {
	s := &Stack{Config: cfg, Logger: lg, name: name}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout(requireDB))
	defer cancel()
	pool, err := db.Connect(cctx, cfg.Database.Pool())
	switch {
	case err == nil:
		s.Pool = pool
		lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Name})
	case requireDB:
		return nil, err
	default:
		lg.Warn("db_unavailable", err, map[string]any{"host": cfg.Database.Host})
		lazy, lerr := db.Lazy(cfg.Database.Pool())
		if lerr != nil {
			lg.Error("db_config_invalid", lerr, nil)
			break
		}
		s.Pool = lazy
	}

	if cfg.Rabbit.Enabled {
		client, err := mq.Dial(cfg.Rabbit.Client())
		if err != nil {
			lg.Warn("rabbitmq_unavailable", err, map[string]any{"host": cfg.Rabbit.Host})
		} else {
			s.MQ = client
			lg.Info("rabbitmq_connected", map[string]any{"host": cfg.Rabbit.Host, "vhost": cfg.Rabbit.VHost})
			for _, ex := range []string{feed.ChangesExchange, notify.NotificationsExchange} {
				if err := client.DeclareFanout(ex); err != nil {
					lg.Warn("exchange_declare_failed", err, map[string]any{"exchange": ex})
				}
			}
		}
	}
	return s, nil
}

func connectTimeout(requireDB bool) time.Duration {
	if requireDB {
		return time.Minute
	}
	return 10 * time.Second
}

func (s *Stack) Close() {
	if s.MQ != nil {
		s.MQ.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Stack) Engine() *lifecycle.Engine {
	mode := lifecycle.Advisory
	if s.Config.Lifecycle.Enforce {
		mode = lifecycle.Enforce
	}
	return lifecycle.NewEngine(mode, s.Logger.Named(s.name+".lifecycle"))
}

// Tiers is primary store, then the local API when configured, then the
// sample set.
func (s *Stack) Tiers() gateway.Tiers {
	var t gateway.Tiers
	if s.Pool != nil {
		t.Primary = source.NewOrdersPG(s.Pool)
	}
	if s.Config.LocalAPI.BaseURL != "" {
		t.Local = source.NewLocalAPI(s.Config.LocalAPI.BaseURL, s.Config.LocalAPI.Timeout)
	}
	t.Sample = source.NewSample(source.DefaultSampleOrders(time.Now()))
	return t
}

// Gateway builds the gateway with the change publisher attached when the
// broker is up.
func (s *Stack) Gateway(n notify.Notifier) *gateway.Gateway {
	opts := []gateway.Option{
		gateway.WithEngine(s.Engine()),
		gateway.WithLogger(s.Logger.Named(s.name + ".gateway")),
	}
	if n != nil {
		opts = append(opts, gateway.WithNotifier(n))
	}
	if s.MQ != nil {
		opts = append(opts, gateway.WithPublisher(feed.NewAMQPPublisher(s.MQ, s.name)))
	}
	return gateway.New(s.Tiers(), opts...)
}

// Subscriber picks the change feed transport; nil means polling only.
func (s *Stack) Subscriber() feed.Subscriber {
	lg := s.Logger.Named(s.name + ".feed")
	switch s.Config.Sync.Feed {
	case config.FeedPostgres:
		if s.Pool != nil {
			return feed.NewPGListener(s.Pool, lg)
		}
	case config.FeedRabbitMQ:
		if s.MQ != nil {
			return feed.NewAMQPSubscriber(s.MQ, s.name, lg)
		}
	}
	return nil
}
