package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/fedbridge/bridge-node/bridge"
	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/checker"
	"github.com/fedbridge/bridge-node/config"
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/events"
	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/ocw"
	"github.com/fedbridge/bridge-node/offence"
	"github.com/fedbridge/bridge-node/presenter"
	"github.com/fedbridge/bridge-node/repository"
	"github.com/fedbridge/bridge-node/repository/memory"
	"github.com/fedbridge/bridge-node/sidecar"
	"github.com/fedbridge/bridge-node/summary"
)

const ocwLockTTL = time.Minute

func main() {
	logger := logging.New()

	app := cli.NewApp()
	app.Name = "bridge-node"
	app.Usage = "validator node for the federated Ethereum bridge"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "config.yml",
			Usage: "path to the yaml config file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run the bridge node",
			Action: func(c *cli.Context) error {
				return run(logger, c.GlobalString("config"))
			},
		},
		{
			Name:  "migrate",
			Usage: "apply database migrations and exit",
			Action: func(c *cli.Context) error {
				return migrate(logger, c.GlobalString("config"))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("can't run bridge node")
	}
}

func migrate(logger logging.Logger, configPath string) error {
	cfg, err := config.ReadConfigFromFile(configPath)
	if err != nil {
		return err
	}
	if cfg.DBConfig == nil {
		logger.Warn("no postgres config, nothing to migrate")
		return nil
	}
	dbConn, err := db.ConnectToDBAndMigrate(cfg.DBConfig)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	logger.Info("migrations applied")
	return nil
}

func run(logger *logrus.Logger, configPath string) error {
	cfg, err := config.ReadConfigFromFile(configPath)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	var repo *repository.Repo
	if cfg.DBConfig != nil {
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err2 != nil {
			return err2
		}
		defer dbConn.Close()
		repo = repository.NewRepo(dbConn)
	} else {
		logger.Warn("no postgres config, state will not survive a restart")
		repo = memory.NewRepo()
	}

	validators := make([]chain.Validator, len(cfg.Chain.Validators))
	for i, v := range cfg.Chain.Validators {
		validators[i] = chain.Validator{
			AccountID:  common.HexToAddress(v.Account),
			EthAddress: common.HexToAddress(v.EthAddress),
		}
	}
	set := chain.NewStaticValidatorSet(validators)
	clock := chain.NewSystemClock(
		time.Unix(cfg.Chain.GenesisTime, 0),
		time.Duration(cfg.Chain.BlockTimeSeconds)*time.Second,
		cfg.Chain.FinalityLag,
	)
	account := common.HexToAddress(cfg.Chain.Account)
	if !set.IsValidator(account) {
		logger.WithField("account", account).Warn("node account is not in the validator set, running as observer")
	}

	reporter := offence.NewReporter(logger, repo.Offences, set, clock, &offence.LogSink{Logger: logger})

	bridgeSvc := bridge.NewBridge(logger.WithField("service", "bridge"), repo, set, clock, reporter, bridge.Config{
		QueueCapacity:         cfg.Bridge.QueueCapacity,
		TxLifetimeSeconds:     cfg.Bridge.TxLifetimeSeconds,
		ConfirmationsCapacity: uint(len(validators)),
	})

	eventTypes := make([]entity.EventType, len(cfg.Events.EventTypes))
	for i, t := range cfg.Events.EventTypes {
		eventTypes[i] = entity.EventType(t)
	}
	nftContracts := make([]common.Address, len(cfg.Events.NFTContracts))
	for i, addr := range cfg.Events.NFTContracts {
		nftContracts[i] = common.HexToAddress(addr)
	}
	eventsSvc := events.NewService(logger.WithField("service", "events"), repo, set, reporter, events.Config{
		RangeLength:    cfg.Events.RangeLength,
		EventTypes:     eventTypes,
		BridgeContract: common.HexToAddress(cfg.Bridge.ContractAddress),
		NFTContracts:   nftContracts,
	})
	checkerSvc := checker.NewService(logger.WithField("service", "checker"), repo, set, clock, reporter, checker.Config{
		ChallengePeriodBlocks: cfg.Checker.ChallengePeriodBlocks,
		QuorumFactor:          cfg.Checker.QuorumFactor,
	})
	for _, t := range eventTypes {
		handler := newLogHandler(logger, t)
		eventsSvc.RegisterHandler(t, handler)
		checkerSvc.RegisterHandler(t, handler)
	}

	summarySvc := summary.NewService(logger.WithField("service", "summary"), repo, set, clock, reporter, bridgeSvc, summary.Config{
		VotingPeriodBlocks:   cfg.Summary.VotingPeriodBlocks,
		SchedulePeriodBlocks: cfg.Summary.SchedulePeriodBlocks,
		SlotGraceBlocks:      cfg.Summary.SlotGraceBlocks,
		VotesCapacity:        cfg.Events.VotesCapacity,
	})
	bridgeSvc.RegisterNotifier(summary.CallerID, summarySvc)
	if err = summarySvc.InitSlot(context.Background()); err != nil {
		return fmt.Errorf("can't initialise slot schedule: %w", err)
	}

	pool := extrinsic.NewPool(logger, set, clock, repo, extrinsic.DefaultLongevityBlocks)
	dispatcher := extrinsic.NewDispatcher(logger, set, bridgeSvc, eventsSvc, checkerSvc, summarySvc)
	submitter := extrinsic.NewSubmitter(pool, dispatcher)

	eth := sidecar.NewClient(logger.WithField("service", "sidecar"), cfg.Sidecar)
	bridgeSvc.SetViewer(eth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locks := ocw.NewLockTable()
	scheduler := ocw.NewScheduler(logger.WithField("service", "ocw"), clock, time.Second,
		ocw.NewBridgeDriver(logger.WithField("driver", "bridge"), repo, set, clock, eth, submitter, locks, account, ocwLockTTL),
		ocw.NewDiscoveryDriver(logger.WithField("driver", "discovery"), repo, eth, submitter, account),
		ocw.NewCheckerDriver(logger.WithField("driver", "checker"), repo, set, clock, eth, submitter, account),
		ocw.NewSummaryDriver(logger.WithField("driver", "summary"), repo, clock, eth, submitter, locks, account, cfg.Summary.SlotGraceBlocks, ocwLockTTL),
	)
	go func() {
		if err2 := scheduler.Run(ctx); err2 != nil && ctx.Err() == nil {
			logger.WithError(err2).Fatal("can't run worker scheduler")
		}
	}()

	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), repo)
		go func() {
			if err2 := pr.Serve(cfg.Presenter.Host); err2 != nil {
				logger.WithError(err2).Fatal("can't serve presenter")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	logger.Warn("caught CTRL-C, gracefully terminating")
	cancel()
	return nil
}

// newLogHandler is the default event consumer: it decodes the typed payload
// and logs it. Downstream token/NFT effects live in their own subsystems and
// subscribe with RegisterHandler. An undecodable payload rejects the event.
func newLogHandler(logger logging.Logger, t entity.EventType) events.Handler {
	return events.HandlerFunc(func(_ context.Context, event *entity.DiscoveredEvent) error {
		payload, err := events.DecodePayload(&event.Event)
		if err != nil {
			return fmt.Errorf("can't decode %s payload: %w", t, err)
		}
		logger.WithFields(logrus.Fields{
			"event_type": t,
			"tx_hash":    event.Event.TxHash,
			"block":      event.Block,
			"payload":    fmt.Sprintf("%+v", payload),
		}).Info("accepted ethereum event")
		return nil
	})
}
