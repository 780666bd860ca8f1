package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/chative-party-booking/booking/calendar"
	"github.com/tanpawarit/chative-party-booking/booking/freight"
	"github.com/tanpawarit/chative-party-booking/booking/ledger"
	"github.com/tanpawarit/chative-party-booking/booking/payment"
	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/delivery"
	"github.com/tanpawarit/chative-party-booking/bot/flow"
	"github.com/tanpawarit/chative-party-booking/bot/orchestrator"
	"github.com/tanpawarit/chative-party-booking/bot/state"
	configx "github.com/tanpawarit/chative-party-booking/pkg/config"
	_ "github.com/tanpawarit/chative-party-booking/pkg/logger/autoload"
	"github.com/tanpawarit/chative-party-booking/pkg/mailer"
	"github.com/tanpawarit/chative-party-booking/pkg/postgres"
	qstashx "github.com/tanpawarit/chative-party-booking/pkg/qstash"
	"github.com/tanpawarit/chative-party-booking/pkg/rabbitmq"
	"github.com/tanpawarit/chative-party-booking/pkg/redisx"
	"github.com/tanpawarit/chative-party-booking/server"
)

// AppConfig picks the backends. "memory" everywhere gives a self-contained
// demo process.
type AppConfig struct {
	SessionStore string `split_words:"true" default:"upstash"`
	Calendar     string `envconfig:"CALENDAR" default:"google"`
	Ledger       string `envconfig:"LEDGER" default:"postgres"`
	Broker       string `envconfig:"BROKER" default:"rabbitmq"`
	Reports      string `envconfig:"REPORTS" default:"queue"`
	DayLocks     bool   `split_words:"true" default:"true"`
	MediaBaseURL string `split_words:"true"`
	ReportDir    string `split_words:"true" default:"reports"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Party booking bot stopped")
	}
	log.Info().Msg("Party booking bot shut down")
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	bookingCfg := configx.MustNew[reservation.Config]("BOOKING")
	flowCfg := configx.MustNew[flow.Config]("FLOW")
	serverCfg := configx.MustNew[server.Config]("SERVER")
	rates := configx.MustNew[freight.Rates]("FREIGHT")
	stripeCfg := configx.MustNew[payment.Config]("STRIPE")

	var db *bun.DB
	openDB := func() (*bun.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = postgres.Open(ctx, *configx.MustNew[postgres.Config]("DATABASE"))
		return db, err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	gateway, err := newCalendar(ctx, appCfg.Calendar)
	if err != nil {
		return err
	}

	bookLedger, err := newLedger(ctx, appCfg.Ledger, openDB)
	if err != nil {
		return err
	}

	var managerOpts []reservation.Option
	if appCfg.DayLocks {
		rdb, err := redisx.New(ctx, *configx.MustNew[redisx.Config]("REDIS"))
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker, err := reservation.NewRedisDayLocker(rdb, "", 0)
		if err != nil {
			return err
		}
		managerOpts = append(managerOpts, reservation.WithLocker(locker))
	}
	manager, err := reservation.NewManager(gateway, bookLedger, *bookingCfg, managerOpts...)
	if err != nil {
		return err
	}

	sessions, err := newSessionStore(ctx, appCfg.SessionStore, openDB)
	if err != nil {
		return err
	}

	payments, err := payment.NewStripeGateway(*stripeCfg)
	if err != nil {
		return err
	}

	var distance freight.Provider
	if mapsCfg, err := configx.New[freight.MapsConfig]("GOOGLE_MAPS"); err == nil {
		distance, err = freight.NewMapsProvider(*mapsCfg)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Err(err).Msg("Google Maps not configured, freight quotes are disabled")
	}

	var workerOpts []delivery.WorkerOption
	if smtpCfg, err := configx.New[mailer.Config]("SMTP"); err == nil {
		m, err := mailer.New(*smtpCfg)
		if err != nil {
			return err
		}
		workerOpts = append(workerOpts, delivery.WithReportSender(m))
	} else {
		log.Warn().Err(err).Msg("SMTP not configured, reports are only written to disk")
	}
	worker := delivery.NewReportWorker(manager, bookLedger, appCfg.ReportDir, nil, workerOpts...)

	var (
		outbox     contract.Outbox = delivery.LogOutbox{}
		reports    contract.ReportTrigger
		jobs       *qstashx.Client
		rabbitCfg  *rabbitmq.Config
		consumers  []func(context.Context) error
		serverOpts []server.Option
	)
	if appCfg.Broker == "rabbitmq" {
		rabbitCfg = configx.MustNew[rabbitmq.Config]("RABBITMQ")
		pub, err := rabbitmq.NewPublisher(*rabbitCfg)
		if err != nil {
			return err
		}
		defer pub.Close()
		if outbox, err = delivery.NewQueueOutbox(pub, rabbitCfg.OutboundQueue); err != nil {
			return err
		}
		if appCfg.Reports == "queue" {
			if reports, err = delivery.NewQueueReportTrigger(pub, rabbitCfg.ReportQueue); err != nil {
				return err
			}
			consumers = append(consumers, func(ctx context.Context) error {
				return rabbitmq.Consume(ctx, *rabbitCfg, rabbitCfg.ReportQueue, worker.Handle)
			})
		}
	}
	switch {
	case appCfg.Reports == "push":
		jobs, err = qstashx.NewClient(*configx.MustNew[qstashx.Config]("QSTASH"))
		if err != nil {
			return err
		}
		callback := strings.TrimRight(serverCfg.PublicURL, "/") + server.ReportJobPath
		if reports, err = delivery.NewPushReportTrigger(jobs, callback); err != nil {
			return err
		}
		serverOpts = append(serverOpts, server.WithReportJobs(worker, jobs))
	case reports == nil:
		reports = delivery.InlineReportTrigger{Worker: worker}
	}

	machine, err := flow.New(flow.Deps{
		Catalog:      catalog.NewStatic(appCfg.MediaBaseURL),
		Availability: manager.Availability(),
		Reservations: manager,
		Distance:     distance,
		Rates:        *rates,
		Payments:     payments,
		Reports:      reports,
		Location:     manager.Location(),
		Config:       *flowCfg,
	})
	if err != nil {
		return err
	}

	bot, err := orchestrator.New(sessions, machine, manager, outbox, orchestrator.Config{
		Location: manager.Location(),
	})
	if err != nil {
		return err
	}

	webhookSecret := stripeCfg.WebhookSecret
	serverOpts = append(serverOpts, server.WithPaymentWebhook(func(payload []byte, signature string) (payment.Approval, error) {
		return payment.ParseWebhook(payload, signature, webhookSecret)
	}))
	srv, err := server.New(bot, *serverCfg, serverOpts...)
	if err != nil {
		return err
	}

	log.Info().
		Str("sessions", appCfg.SessionStore).
		Str("calendar", appCfg.Calendar).
		Str("ledger", appCfg.Ledger).
		Str("broker", appCfg.Broker).
		Str("reports", appCfg.Reports).
		Msg("Party booking bot starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	for _, consume := range consumers {
		consume := consume
		g.Go(func() error { return consume(gctx) })
	}
	return g.Wait()
}

func newCalendar(ctx context.Context, kind string) (calendar.Gateway, error) {
	switch kind {
	case "memory":
		log.Warn().Msg("Using in-memory calendar, bookings are lost on restart")
		return calendar.NewMemoryGateway(time.Now), nil
	default:
		return calendar.NewGoogleGateway(ctx, *configx.MustNew[calendar.GoogleConfig]("GOOGLE_CALENDAR"))
	}
}

func newLedger(ctx context.Context, kind string, openDB func() (*bun.DB, error)) (ledger.Ledger, error) {
	if kind == "memory" {
		return ledger.NewMemoryLedger(), nil
	}
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	l, err := ledger.NewBunLedger(db)
	if err != nil {
		return nil, err
	}
	if err := l.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func newSessionStore(ctx context.Context, kind string, openDB func() (*bun.DB, error)) (state.Store, error) {
	switch kind {
	case "memory":
		return state.NewMemoryStore(), nil
	case "postgres":
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		s, err := state.NewBunStore(db)
		if err != nil {
			return nil, err
		}
		if err := s.CreateSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return state.NewUpstashRedisStore(*configx.MustNew[state.UpstashRedisConfig]("UPSTASH_REDIS"))
	}
}
