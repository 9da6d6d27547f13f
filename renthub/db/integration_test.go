//go:build integration

package db_test

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"renthub-services/renthub/db"
	"renthub-services/renthub/rentlog"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStore *db.Store

func TestMain(m *testing.M) {
	rentlog.New("testing", "TraceLevel")
	rentlog.L.Info().Msg("Spinning up docker container for postgres...")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	user := "dev"
	password := "dev"
	dbName := "renthub"

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "13-alpine",
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}

	port := resource.GetPort("5432/tcp")
	connString := fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", user, password, port, dbName)

	err = pool.Retry(func() error {
		cfg, err := pgx.ParseConfig(connString)
		if err != nil {
			return err
		}
		conn := stdlib.OpenDB(*cfg)
		defer conn.Close()
		return conn.Ping()
	})
	if err != nil {
		log.Fatalf("Could not connect to database: %s", err)
	}

	mig, err := migrate.New("file://../../migrations", connString)
	if err != nil {
		log.Fatalf("Could not open migrations: %s", err)
	}
	err = mig.Up()
	if err != nil {
		log.Fatalf("Could not migrate: %s", err)
	}

	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		log.Fatalf("Could not parse conn string: %s", err)
	}
	conn := stdlib.OpenDB(*cfg)
	testStore = db.NewStore(conn)

	code := m.Run()

	conn.Close()
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge resource: %s", err)
	}
	os.Exit(code)
}

func TestListingLifecyclePostgres(t *testing.T) {
	ctx := context.Background()

	listing := &types.Listing{
		Lister:        lister,
		Asset:         types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(1)),
		Params:        types.ListingParams{Strategy: types.ListingStrategyFixedPrice, Data: make([]byte, 32)},
		MaxLockPeriod: 86400,
		CreatedAt:     time.Now(),
	}
	id, err := testStore.InsertListing(ctx, listing)
	require.NoError(t, err)
	listing.GroupID = id
	require.NoError(t, testStore.UpdateListing(ctx, listing))

	stored, err := testStore.Listing(ctx, id)
	require.NoError(t, err)
	require.Equal(t, lister, stored.Lister)
	require.Equal(t, id, stored.GroupID)
	require.True(t, stored.Asset.ID.Equal(listing.Asset.ID))

	count, err := testStore.UserListingCount(ctx, lister)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)

	byAsset, err := testStore.AssetListings(ctx, original, 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, byAsset)

	require.NoError(t, testStore.DeleteListing(ctx, id))
}

func TestBalanceUpsertPostgres(t *testing.T) {
	ctx := context.Background()
	payee := types.UserPayee(renter)

	require.NoError(t, testStore.AddBalance(ctx, payee, token, decimal.NewFromInt(100)))
	require.NoError(t, testStore.AddBalance(ctx, payee, token, decimal.NewFromInt(50)))
	require.NoError(t, testStore.SubBalance(ctx, payee, token, decimal.NewFromInt(30)))

	balance, err := testStore.Balance(ctx, payee, token)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(120)))

	err = testStore.SubBalance(ctx, payee, token, decimal.NewFromInt(10000))
	var insufficient *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
}

func TestRentalQueriesPostgres(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	warped := types.NewNFTAsset(types.AssetClassERC721, common.HexToAddress("0x31"), big.NewInt(5))
	id, err := testStore.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset:  warped,
		CollectionID: common.HexToHash("0xabc"),
		ListingID:    1,
		Renter:       renter,
		StartTime:    now,
		EndTime:      now.Add(time.Hour),
		ListingParams: types.ListingParams{
			Strategy: types.ListingStrategyFixedPrice,
			Data:     make([]byte, 32),
		},
	})
	require.NoError(t, err)

	active, err := testStore.ActiveRentalForAsset(ctx, warped.ID, now)
	require.NoError(t, err)
	require.Equal(t, id, active.ID)

	has, err := testStore.HasRentalForAsset(ctx, warped.ID)
	require.NoError(t, err)
	require.True(t, has)

	total, err := testStore.CollectionRentedValue(ctx, common.HexToHash("0xabc"), renter, now)
	require.NoError(t, err)
	require.True(t, total.GreaterThanOrEqual(decimal.NewFromInt(1)))
}
