package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"renthub-services/renthub/api"
	"renthub-services/renthub/bridge"
	"renthub-services/renthub/controllers"
	"renthub-services/renthub/db"
	"renthub-services/renthub/events"
	"renthub-services/renthub/listings"
	"renthub-services/renthub/payments"
	"renthub-services/renthub/registry"
	"renthub-services/renthub/rentdb"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/renting"
	"renthub-services/renthub/store"
	"renthub-services/renthub/store/memstore"
	"renthub-services/renthub/tokens"
	"renthub-services/renthub/universes"
	"renthub-services/renthub/vault"
	"renthub-services/renthub/warpers"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/ninja-software/terror/v2"
	"github.com/oklog/run"
	"github.com/urfave/cli/v2"
)

// Variable passed in at compile time using `-ldflags`
var (
	Version   string // -X main.Version=$(git describe --tags --abbrev=0)
	GitHash   string // -X main.GitHash=$(git rev-parse HEAD)
	GitBranch string // -X main.GitBranch=$(git rev-parse --abbrev-ref HEAD)
	BuildDate string // -X main.BuildDate=$(date -u +%Y%m%d%H%M%S)
)

const envPrefix = "RENTHUB"

func main() {
	app := &cli.App{
		Compiled: time.Now(),
		Usage:    "run the renthub server",
		Commands: []*cli.Command{
			{
				Name: "version",
				Action: func(c *cli.Context) error {
					fmt.Printf("%s (%s, %s, %s)\n", Version, GitBranch, GitHash, BuildDate)
					return nil
				},
			},
			{
				Name:  "db",
				Usage: "run database migrations",
				Flags: append(dbFlags(),
					&cli.BoolFlag{Name: "down", Value: false, Usage: "migrate down instead of up"},
					&cli.StringFlag{Name: "migrations_path", Value: "./migrations", EnvVars: []string{envPrefix + "_MIGRATIONS_PATH"}, Usage: "path to the migration files"},
				),
				Action: func(c *cli.Context) error {
					return migrateDB(c)
				},
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for an operator account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "jwt_key", Value: "ITF1vauAxvJlF0PLNY9btOO9ZzbUmc6X", EnvVars: []string{envPrefix + "_JWT_KEY", "JWT_KEY"}, Usage: "key used to sign auth tokens"},
					&cli.IntFlag{Name: "jwt_expiry_days", Value: 1, EnvVars: []string{envPrefix + "_JWT_EXPIRY_DAYS", "JWT_EXPIRY_DAYS"}, Usage: "expiry days for auth tokens"},
					&cli.StringFlag{Name: "account", Value: "", Usage: "address the token is issued for", Required: true},
				},
				Action: func(c *cli.Context) error {
					token, err := mintToken(c.String("jwt_key"), c.Int("jwt_expiry_days"), c.String("account"))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "run the api server",
				Flags: serveFlags(),
				Action: func(c *cli.Context) error {
					rentlog.New(c.String("environment"), c.String("log_level"))

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					g := &run.Group{}
					g.Add(run.SignalHandler(ctx, os.Interrupt))
					g.Add(func() error { return serveFunc(ctx, c) }, func(err error) { cancel() })

					err := g.Run()
					if errors.Is(err, run.SignalError{Signal: os.Interrupt}) {
						err = terror.Warn(err)
					}
					if err != nil {
						terror.Echo(err)
					}
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		terror.Echo(err)
		os.Exit(1)
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "database_user", Value: "renthub", EnvVars: []string{envPrefix + "_DATABASE_USER", "DATABASE_USER"}, Usage: "The database user"},
		&cli.StringFlag{Name: "database_pass", Value: "dev", EnvVars: []string{envPrefix + "_DATABASE_PASS", "DATABASE_PASS"}, Usage: "The database pass"},
		&cli.StringFlag{Name: "database_host", Value: "localhost", EnvVars: []string{envPrefix + "_DATABASE_HOST", "DATABASE_HOST"}, Usage: "The database host"},
		&cli.StringFlag{Name: "database_port", Value: "5432", EnvVars: []string{envPrefix + "_DATABASE_PORT", "DATABASE_PORT"}, Usage: "The database port"},
		&cli.StringFlag{Name: "database_name", Value: "renthub", EnvVars: []string{envPrefix + "_DATABASE_NAME", "DATABASE_NAME"}, Usage: "The database name"},
		&cli.StringFlag{Name: "database_application_name", Value: "Renthub API", EnvVars: []string{envPrefix + "_DATABASE_APPLICATION_NAME"}, Usage: "Postgres application name"},
		&cli.IntFlag{Name: "database_max_idle_conns", Value: 40, EnvVars: []string{envPrefix + "_DATABASE_MAX_IDLE_CONNS"}, Usage: "Database max idle conns"},
		&cli.IntFlag{Name: "database_max_open_conns", Value: 50, EnvVars: []string{envPrefix + "_DATABASE_MAX_OPEN_CONNS"}, Usage: "Database max open conns"},
	}
}

func serveFlags() []cli.Flag {
	return append(dbFlags(),
		&cli.StringFlag{Name: "environment", Value: "development", DefaultText: "development", EnvVars: []string{envPrefix + "_ENVIRONMENT", "ENVIRONMENT"}, Usage: "This program environment (development, testing, staging, production), it sets the log levels"},
		&cli.StringFlag{Name: "log_level", Value: "InfoLevel", EnvVars: []string{envPrefix + "_LOG_LEVEL"}, Usage: "Set the log level for zerolog (Options: PanicLevel, FatalLevel, ErrorLevel, WarnLevel, InfoLevel, DebugLevel, TraceLevel"},
		&cli.StringFlag{Name: "api_addr", Value: ":8086", EnvVars: []string{envPrefix + "_API_ADDR", "API_ADDR"}, Usage: "host:port to run the API"},
		&cli.BoolFlag{Name: "in_memory_store", Value: false, EnvVars: []string{envPrefix + "_IN_MEMORY_STORE"}, Usage: "use the in memory store instead of postgres (dev only)"},

		&cli.UintFlag{Name: "protocol_fee_percent", Value: 500, EnvVars: []string{envPrefix + "_PROTOCOL_FEE_PERCENT"}, Usage: "protocol rental fee in basis points"},
		&cli.StringFlag{Name: "base_token", Value: "", EnvVars: []string{envPrefix + "_BASE_TOKEN"}, Usage: "ERC20 token rentals are paid in"},
		&cli.StringFlag{Name: "treasury_addr", Value: "", EnvVars: []string{envPrefix + "_TREASURY_ADDR"}, Usage: "address rental payments are pulled into"},
		&cli.StringFlag{Name: "admin_addrs", Value: "", EnvVars: []string{envPrefix + "_ADMIN_ADDRS"}, Usage: "comma separated admin addresses"},
		&cli.StringFlag{Name: "supervisor_addrs", Value: "", EnvVars: []string{envPrefix + "_SUPERVISOR_ADDRS"}, Usage: "comma separated supervisor addresses"},

		&cli.StringFlag{Name: "jwt_key", Value: "ITF1vauAxvJlF0PLNY9btOO9ZzbUmc6X", EnvVars: []string{envPrefix + "_JWT_KEY", "JWT_KEY"}, Usage: "key used to sign auth tokens"},
		&cli.IntFlag{Name: "jwt_expiry_days", Value: 1, EnvVars: []string{envPrefix + "_JWT_EXPIRY_DAYS", "JWT_EXPIRY_DAYS"}, Usage: "expiry days for auth tokens"},

		&cli.StringFlag{Name: "eth_node_addr", Value: "", EnvVars: []string{envPrefix + "_ETH_NODE_ADDR"}, Usage: "ethereum node websocket or http address"},
		&cli.Int64Flag{Name: "eth_chain_id", Value: 5, EnvVars: []string{envPrefix + "_ETH_CHAIN_ID"}, Usage: "ethereum chain id"},
		&cli.StringFlag{Name: "operator_addr", Value: "", EnvVars: []string{envPrefix + "_OPERATOR_ADDR"}, Usage: "operator wallet address"},
		&cli.StringFlag{Name: "signer_private_key", Value: "", EnvVars: []string{envPrefix + "_SIGNER_PRIVATE_KEY"}, Usage: "private key used to sign payout transactions"},
	)
}

func mintToken(key string, expiryDays int, account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", terror.Error(fmt.Errorf("invalid account %q", account), "account must be an address")
	}
	issuer := tokens.NewIssuer([]byte(key), expiryDays)
	token, err := issuer.Issue(common.HexToAddress(account))
	if err != nil {
		return "", terror.Error(err, "could not issue the token")
	}
	return token, nil
}

func migrateDB(c *cli.Context) error {
	connString := pgConnString(c)
	mig, err := migrate.New("file://"+c.String("migrations_path"), connString)
	if err != nil {
		return terror.Error(err, "could not open migrations")
	}
	if c.Bool("down") {
		err = mig.Down()
	} else {
		err = mig.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return terror.Error(err, "migration failed")
	}
	return nil
}

func serveFunc(ctx context.Context, c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	var dataStore store.Store
	if c.Bool("in_memory_store") {
		dataStore = memstore.New()
	} else {
		conn, err := sqlConnect(c)
		if err != nil {
			return terror.Error(err, "could not connect to the database")
		}
		err = rentdb.New(conn)
		if err != nil {
			return terror.Error(err)
		}
		dataStore = db.NewStore(rentdb.StdConn)
	}

	var transferer bridge.TokenTransferer
	if cfg.BridgeParams.EthNodeAddr == "" {
		rentlog.L.Warn().Msg("no eth node configured, recording token transfers instead")
		transferer = bridge.NewRecordingTransferer(cfg.BridgeParams.OperatorAddr)
	} else {
		transferer, err = bridge.NewERC20Client(cfg.BridgeParams.EthNodeAddr, cfg.BridgeParams.ETHChainID, cfg.BridgeParams.SignerPrivateKey)
		if err != nil {
			return terror.Error(err, "could not set up the token bridge")
		}
	}

	publisher := events.NewWSPublisher()

	classes := registry.NewAssetClasses()
	classes.Register(types.AssetClassERC721, controllers.NewERC721Controller(), vault.NewTrackingVault())
	strategies := registry.NewListingStrategies()
	strategies.Register(types.ListingStrategyFixedPrice, controllers.NewFixedPriceStrategy())

	gate := universes.NewGate(dataStore, cfg.Admins, cfg.Supervisors)

	listingManager := listings.NewManager(dataStore, classes, strategies, publisher)
	rentingManager := renting.NewManager(dataStore, classes, strategies, transferer, publisher, cfg)
	paymentManager := payments.NewManager(dataStore, transferer, gate, publisher)
	universeManager := universes.NewManager(dataStore, gate)
	warperManager := warpers.NewManager(dataStore, gate)

	issuer := tokens.NewIssuer([]byte(cfg.JWTKey), cfg.TokenExpirationDays)

	server := api.NewAPI(
		cfg.APIAddr,
		issuer,
		listingManager,
		rentingManager,
		paymentManager,
		universeManager,
		warperManager,
	)
	return server.Run(ctx)
}

func parseConfig(c *cli.Context) (*types.Config, error) {
	baseToken := c.String("base_token")
	if !common.IsHexAddress(baseToken) {
		return nil, terror.Error(fmt.Errorf("invalid base token %q", baseToken), "base_token must be an address")
	}
	treasury := c.String("treasury_addr")
	if !common.IsHexAddress(treasury) {
		return nil, terror.Error(fmt.Errorf("invalid treasury address %q", treasury), "treasury_addr must be an address")
	}
	admins, err := parseAddressList(c.String("admin_addrs"))
	if err != nil {
		return nil, terror.Error(err, "invalid admin_addrs")
	}
	supervisors, err := parseAddressList(c.String("supervisor_addrs"))
	if err != nil {
		return nil, terror.Error(err, "invalid supervisor_addrs")
	}

	return &types.Config{
		Environment:              c.String("environment"),
		APIAddr:                  c.String("api_addr"),
		ProtocolRentalFeePercent: uint16(c.Uint("protocol_fee_percent")),
		BaseToken:                common.HexToAddress(baseToken),
		Treasury:                 common.HexToAddress(treasury),
		Admins:                   admins,
		Supervisors:              supervisors,
		TokenExpirationDays:      c.Int("jwt_expiry_days"),
		JWTKey:                   c.String("jwt_key"),
		BridgeParams: &types.BridgeParams{
			EthNodeAddr:      c.String("eth_node_addr"),
			ETHChainID:       c.Int64("eth_chain_id"),
			SignerPrivateKey: c.String("signer_private_key"),
			OperatorAddr:     common.HexToAddress(c.String("operator_addr")),
		},
	}, nil
}

func parseAddressList(raw string) ([]common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	addresses := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("invalid address %q", part)
		}
		addresses = append(addresses, common.HexToAddress(part))
	}
	return addresses, nil
}

func pgConnString(c *cli.Context) string {
	params := url.Values{}
	params.Add("sslmode", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		c.String("database_user"),
		c.String("database_pass"),
		c.String("database_host"),
		c.String("database_port"),
		c.String("database_name"),
		params.Encode(),
	)
}

func sqlConnect(c *cli.Context) (*sql.DB, error) {
	params := url.Values{}
	params.Add("sslmode", "disable")
	if name := c.String("database_application_name"); name != "" {
		params.Add("application_name", fmt.Sprintf("%s %s", name, Version))
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		c.String("database_user"),
		c.String("database_pass"),
		c.String("database_host"),
		c.String("database_port"),
		c.String("database_name"),
		params.Encode(),
	)
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	conn := stdlib.OpenDB(*cfg)
	conn.SetMaxIdleConns(c.Int("database_max_idle_conns"))
	conn.SetMaxOpenConns(c.Int("database_max_open_conns"))
	return conn, nil
}
