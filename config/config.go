package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	DB       string `yaml:"database" validate:"required"`
}

type PresenterConfig struct {
	Host string `yaml:"host" validate:"required,hostname_port"`
}

type SidecarConfig struct {
	URL            string `yaml:"url" validate:"required,url"`
	TimeoutSeconds uint   `yaml:"timeout"`
}

type ValidatorConfig struct {
	Account    string `yaml:"account" validate:"required,eth_addr"`
	EthAddress string `yaml:"eth_address" validate:"required,eth_addr"`
}

type ChainConfig struct {
	Account          string             `yaml:"account" validate:"required,eth_addr"`
	Validators       []*ValidatorConfig `yaml:"validators" validate:"required,min=1,dive"`
	GenesisTime      int64              `yaml:"genesis_time" validate:"required"`
	BlockTimeSeconds uint64             `yaml:"block_time"`
	FinalityLag      uint64             `yaml:"finality_lag"`
}

type BridgeConfig struct {
	ContractAddress   string `yaml:"contract_address" validate:"required,eth_addr"`
	QueueCapacity     uint   `yaml:"queue_capacity"`
	TxLifetimeSeconds uint64 `yaml:"tx_lifetime"`
}

type EventsConfig struct {
	RangeLength   uint32   `yaml:"range_length"`
	EventTypes    []string `yaml:"event_types" validate:"required,min=1"`
	NFTContracts  []string `yaml:"nft_contracts" validate:"dive,eth_addr"`
	VotesCapacity uint     `yaml:"votes_capacity"`
}

type CheckerConfig struct {
	ChallengePeriodBlocks uint64 `yaml:"challenge_period" validate:"omitempty,min=60"`
	QuorumFactor          uint   `yaml:"quorum_factor" validate:"omitempty,min=1"`
}

type SummaryConfig struct {
	VotingPeriodBlocks   uint64 `yaml:"voting_period"`
	SchedulePeriodBlocks uint64 `yaml:"schedule_period"`
	SlotGraceBlocks      uint64 `yaml:"advance_slot_grace_period"`
}

type Config struct {
	LogLevel  string           `yaml:"log_level"`
	DBConfig  *DBConfig        `yaml:"postgres"`
	Presenter *PresenterConfig `yaml:"presenter"`
	Sidecar   *SidecarConfig   `yaml:"sidecar" validate:"required"`
	Chain     *ChainConfig     `yaml:"chain" validate:"required"`
	Bridge    *BridgeConfig    `yaml:"bridge" validate:"required"`
	Events    *EventsConfig    `yaml:"events" validate:"required"`
	Checker   *CheckerConfig   `yaml:"checker"`
	Summary   *SummaryConfig   `yaml:"summary"`
}

const (
	DefaultSidecarTimeoutSeconds = 2
	DefaultBlockTimeSeconds      = 3
	DefaultFinalityLag           = 2
	DefaultQueueCapacity         = 64
	DefaultTxLifetimeSeconds     = 60 * 60
	DefaultRangeLength           = 20
	DefaultVotesCapacity         = 100
	DefaultChallengePeriod       = 300
	DefaultQuorumFactor          = 4
	DefaultVotingPeriod          = 100
	DefaultSchedulePeriod        = 200
	DefaultSlotGracePeriod       = 5

	// A posted check result may not become processable sooner than this.
	MinimumEventChallengePeriod = 60
)

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return readConfig(blob)
}

func readConfig(blob []byte) (*Config, error) {
	blob = []byte(os.ExpandEnv(string(blob)))

	cfg := new(Config)
	if err := yaml.Unmarshal(blob, cfg); err != nil {
		return nil, fmt.Errorf("can't parse yaml config: %w", err)
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Checker != nil && cfg.Checker.ChallengePeriodBlocks < MinimumEventChallengePeriod {
		return nil, fmt.Errorf("invalid config: challenge period must be at least %d blocks", MinimumEventChallengePeriod)
	}
	if cfg.Summary.VotingPeriodBlocks >= cfg.Summary.SchedulePeriodBlocks {
		return nil, fmt.Errorf("invalid config: voting period must be shorter than the schedule period")
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Sidecar != nil && cfg.Sidecar.TimeoutSeconds == 0 {
		cfg.Sidecar.TimeoutSeconds = DefaultSidecarTimeoutSeconds
	}
	if cfg.Chain != nil {
		if cfg.Chain.BlockTimeSeconds == 0 {
			cfg.Chain.BlockTimeSeconds = DefaultBlockTimeSeconds
		}
		if cfg.Chain.FinalityLag == 0 {
			cfg.Chain.FinalityLag = DefaultFinalityLag
		}
	}
	if cfg.Bridge != nil {
		if cfg.Bridge.QueueCapacity == 0 {
			cfg.Bridge.QueueCapacity = DefaultQueueCapacity
		}
		if cfg.Bridge.TxLifetimeSeconds == 0 {
			cfg.Bridge.TxLifetimeSeconds = DefaultTxLifetimeSeconds
		}
	}
	if cfg.Events != nil {
		if cfg.Events.RangeLength == 0 {
			cfg.Events.RangeLength = DefaultRangeLength
		}
		if cfg.Events.VotesCapacity == 0 {
			cfg.Events.VotesCapacity = DefaultVotesCapacity
		}
	}
	if cfg.Checker == nil {
		cfg.Checker = &CheckerConfig{}
	}
	if cfg.Checker.ChallengePeriodBlocks == 0 {
		cfg.Checker.ChallengePeriodBlocks = DefaultChallengePeriod
	}
	if cfg.Checker.QuorumFactor == 0 {
		cfg.Checker.QuorumFactor = DefaultQuorumFactor
	}
	if cfg.Summary == nil {
		cfg.Summary = &SummaryConfig{}
	}
	if cfg.Summary.VotingPeriodBlocks == 0 {
		cfg.Summary.VotingPeriodBlocks = DefaultVotingPeriod
	}
	if cfg.Summary.SchedulePeriodBlocks == 0 {
		cfg.Summary.SchedulePeriodBlocks = DefaultSchedulePeriod
	}
	if cfg.Summary.SlotGraceBlocks == 0 {
		cfg.Summary.SlotGraceBlocks = DefaultSlotGracePeriod
	}
}
