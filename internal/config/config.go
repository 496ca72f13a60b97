// Package config handles configuration loading and validation. All
// settings come from the environment, optionally seeded from a .env
// file; numbered variables (RPC_1, PRIVATE_KEY_1, ...) build the
// endpoint and account lists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Credential is one account as configured: the raw private key and the
// address it is expected to control. The pairing is verified when the
// key is loaded.
type Credential struct {
	PrivateKey string
	Address    string
}

// Contracts holds the chain deployment the profiles run against.
type Contracts struct {
	Staking       common.Address
	Wrapped       common.Address
	Stable        common.Address
	PathRouter    common.Address
	PoolRouter    common.Address
	Pool          common.Address
	PoolFee       uint32
	AdapterRouter common.Address
	Adapter       common.Address
}

// CycleTuning bounds the randomized pacing of one profile group.
type CycleTuning struct {
	MinTx    int
	MaxTx    int
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Config holds the full process configuration.
type Config struct {
	RPCURLs     []string
	ChainID     int64
	Credentials []Credential
	Contracts   Contracts
	ValidatorID uint16

	Staker  CycleTuning // staking profile pacing
	Churner CycleTuning // wrap-and-swap profile pacing
	Trader  CycleTuning // daily swap profile pacing

	ListenAddr   string // metrics endpoint
	DatabasePath string // submission journal
}

// Defaults
const (
	DefaultChainID      = 98866
	DefaultValidatorID  = 5
	DefaultListenAddr   = ":3001"
	DefaultDatabasePath = "./data/volumegen.db"
	DefaultPoolFee      = 3000

	DefaultMinTx        = 1
	DefaultMaxTx        = 3
	DefaultMinDelay     = 5 * time.Minute
	DefaultMaxDelay     = 15 * time.Minute
	DefaultChurnMinTx   = 2
	DefaultChurnMaxTx   = 6
	DefaultChurnMinWait = 2 * time.Minute
	DefaultChurnMaxWait = 10 * time.Minute
	DefaultMinTxPerDay  = 2
	DefaultMaxTxPerDay  = 5
	DefaultMinDelaySec  = 10 * time.Second
	DefaultMaxDelaySec  = 60 * time.Second
)

// Default deployment addresses, overridable per environment.
var (
	DefaultStakingContract = common.HexToAddress("0x30c791E4654EdAc575FA1700eD8633CB2FEDE871")
	DefaultStableToken     = common.HexToAddress("0xdddD73F5Df1F0DC31373357beAC77545dC5A6f3F")
	DefaultWrappedToken    = common.HexToAddress("0xEa237441c92CAe6FC17Caaf9a7acB3f953be4bd1")
	DefaultPathRouter      = common.HexToAddress("0x77aB297Da4f3667059ef0C32F5bc657f1006cBB0")
	DefaultPoolRouter      = common.HexToAddress("0x35e44dc4702Fd51744001E248B49CBf9fcc51f0C")
	DefaultSwapPool        = common.HexToAddress("0x39ba3C1Dbe665452E86fde9C71FC64C78aa2445C")
	DefaultAdapterRouter   = common.HexToAddress("0xd8f185769b6E2918B759e83F7EC268C882800EC7")
	DefaultAdapter         = common.HexToAddress("0x83BBC9C4C436BD7A4B4A1c5d42B00CaaE113c3b5")
)

// Load reads configuration from the environment. A .env file at
// envFile, when present, is loaded first without overriding variables
// already set in the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ChainID:     DefaultChainID,
		ValidatorID: DefaultValidatorID,
		Contracts: Contracts{
			Staking:       DefaultStakingContract,
			Wrapped:       DefaultWrappedToken,
			Stable:        DefaultStableToken,
			PathRouter:    DefaultPathRouter,
			PoolRouter:    DefaultPoolRouter,
			Pool:          DefaultSwapPool,
			PoolFee:       DefaultPoolFee,
			AdapterRouter: DefaultAdapterRouter,
			Adapter:       DefaultAdapter,
		},
		Staker: CycleTuning{
			MinTx:    DefaultMinTx,
			MaxTx:    DefaultMaxTx,
			MinDelay: DefaultMinDelay,
			MaxDelay: DefaultMaxDelay,
		},
		Churner: CycleTuning{
			MinTx:    DefaultChurnMinTx,
			MaxTx:    DefaultChurnMaxTx,
			MinDelay: DefaultChurnMinWait,
			MaxDelay: DefaultChurnMaxWait,
		},
		Trader: CycleTuning{
			MinTx:    DefaultMinTxPerDay,
			MaxTx:    DefaultMaxTxPerDay,
			MinDelay: DefaultMinDelaySec,
			MaxDelay: DefaultMaxDelaySec,
		},
		ListenAddr:   DefaultListenAddr,
		DatabasePath: DefaultDatabasePath,
	}

	// Numbered endpoints first, RPC_URL as the single-endpoint fallback.
	for i := 1; ; i++ {
		url := os.Getenv(fmt.Sprintf("RPC_%d", i))
		if url == "" {
			break
		}
		cfg.RPCURLs = append(cfg.RPCURLs, url)
	}
	if len(cfg.RPCURLs) == 0 {
		if url := os.Getenv("RPC_URL"); url != "" {
			cfg.RPCURLs = append(cfg.RPCURLs, url)
		}
	}

	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf("PRIVATE_KEY_%d", i))
		addr := os.Getenv(fmt.Sprintf("WALLET_ADDRESS_%d", i))
		if key == "" || addr == "" {
			break
		}
		cfg.Credentials = append(cfg.Credentials, Credential{PrivateKey: key, Address: addr})
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHAIN_ID: %w", err)
		}
		cfg.ChainID = id
	}
	if v := os.Getenv("VALIDATOR_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("VALIDATOR_ID: %w", err)
		}
		cfg.ValidatorID = uint16(id)
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if err := loadInt("MIN_TX", &cfg.Staker.MinTx); err != nil {
		return nil, err
	}
	if err := loadInt("MAX_TX", &cfg.Staker.MaxTx); err != nil {
		return nil, err
	}
	// MIN_DELAY/MAX_DELAY are seconds, matching the other delay knobs;
	// only the defaults are minute-scale.
	if err := loadSeconds("MIN_DELAY", &cfg.Staker.MinDelay); err != nil {
		return nil, err
	}
	if err := loadSeconds("MAX_DELAY", &cfg.Staker.MaxDelay); err != nil {
		return nil, err
	}
	if err := loadInt("CHURN_MIN_TX", &cfg.Churner.MinTx); err != nil {
		return nil, err
	}
	if err := loadInt("CHURN_MAX_TX", &cfg.Churner.MaxTx); err != nil {
		return nil, err
	}
	if err := loadSeconds("CHURN_MIN_DELAY_SEC", &cfg.Churner.MinDelay); err != nil {
		return nil, err
	}
	if err := loadSeconds("CHURN_MAX_DELAY_SEC", &cfg.Churner.MaxDelay); err != nil {
		return nil, err
	}
	if err := loadInt("MIN_TX_PER_DAY", &cfg.Trader.MinTx); err != nil {
		return nil, err
	}
	if err := loadInt("MAX_TX_PER_DAY", &cfg.Trader.MaxTx); err != nil {
		return nil, err
	}
	if err := loadSeconds("MIN_DELAY_SEC", &cfg.Trader.MinDelay); err != nil {
		return nil, err
	}
	if err := loadSeconds("MAX_DELAY_SEC", &cfg.Trader.MaxDelay); err != nil {
		return nil, err
	}

	if err := loadAddress("STAKING_CONTRACT", &cfg.Contracts.Staking); err != nil {
		return nil, err
	}
	if err := loadAddress("WRAPPED_TOKEN", &cfg.Contracts.Wrapped); err != nil {
		return nil, err
	}
	if err := loadAddress("STABLE_TOKEN", &cfg.Contracts.Stable); err != nil {
		return nil, err
	}
	if err := loadAddress("PATH_ROUTER", &cfg.Contracts.PathRouter); err != nil {
		return nil, err
	}
	if err := loadAddress("POOL_ROUTER", &cfg.Contracts.PoolRouter); err != nil {
		return nil, err
	}
	if err := loadAddress("SWAP_POOL", &cfg.Contracts.Pool); err != nil {
		return nil, err
	}
	if err := loadAddress("ADAPTER_ROUTER", &cfg.Contracts.AdapterRouter); err != nil {
		return nil, err
	}
	if err := loadAddress("ADAPTER", &cfg.Contracts.Adapter); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("no RPC endpoints configured (set RPC_1 or RPC_URL)")
	}
	if len(c.Credentials) == 0 {
		return fmt.Errorf("no accounts configured (set PRIVATE_KEY_1 and WALLET_ADDRESS_1)")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	for i, cred := range c.Credentials {
		if !common.IsHexAddress(cred.Address) {
			return fmt.Errorf("WALLET_ADDRESS_%d is not a valid address: %s", i+1, cred.Address)
		}
	}
	if err := c.Staker.validate("staker"); err != nil {
		return err
	}
	if err := c.Churner.validate("churner"); err != nil {
		return err
	}
	if err := c.Trader.validate("trader"); err != nil {
		return err
	}
	return nil
}

func (t CycleTuning) validate(name string) error {
	if t.MinTx <= 0 || t.MaxTx < t.MinTx {
		return fmt.Errorf("%s transaction range [%d, %d] is invalid", name, t.MinTx, t.MaxTx)
	}
	if t.MinDelay < 0 || t.MaxDelay < t.MinDelay {
		return fmt.Errorf("%s delay range [%s, %s] is invalid", name, t.MinDelay, t.MaxDelay)
	}
	return nil
}

func loadInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func loadSeconds(name string, dst *time.Duration) error {
	var n int
	if err := loadInt(name, &n); err != nil {
		return err
	}
	if n > 0 {
		*dst = time.Duration(n) * time.Second
	}
	return nil
}

func loadAddress(name string, dst *common.Address) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	if !common.IsHexAddress(v) {
		return fmt.Errorf("%s is not a valid address: %s", name, v)
	}
	*dst = common.HexToAddress(v)
	return nil
}
