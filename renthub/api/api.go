// Package api is the REST surface. Handlers stay thin: parse the request,
// call the owning manager, encode the result.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"renthub-services/renthub/listings"
	"renthub-services/renthub/payments"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/renting"
	"renthub-services/renthub/tokens"
	"renthub-services/renthub/universes"
	"renthub-services/renthub/warpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ninja-software/terror/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type API struct {
	Addr      string
	Tokens    *tokens.Issuer
	Listings  *listings.Manager
	Renting   *renting.Manager
	Payments  *payments.Manager
	Universes *universes.Manager
	Warpers   *warpers.Manager
}

func NewAPI(
	addr string,
	issuer *tokens.Issuer,
	listingManager *listings.Manager,
	rentingManager *renting.Manager,
	paymentManager *payments.Manager,
	universeManager *universes.Manager,
	warperManager *warpers.Manager,
) *API {
	return &API{
		Addr:      addr,
		Tokens:    issuer,
		Listings:  listingManager,
		Renting:   rentingManager,
		Payments:  paymentManager,
		Universes: universeManager,
		Warpers:   warperManager,
	}
}

func (api *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(
		cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"*"},
		}).Handler,
	)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rentlog.ChiLogger(zerolog.InfoLevel))
	r.Use(countRequests)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/check", WithError(api.Check))

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", WithError(api.ListingsList))
			r.Get("/count", WithError(api.ListingsCount))
			r.Get("/{listing_id}", WithError(api.ListingGet))
			r.Post("/", WithError(WithAccount(api, api.ListingCreate)))
			r.Post("/{listing_id}/delist", WithError(WithAccount(api, api.ListingDelist)))
			r.Post("/{listing_id}/withdraw", WithError(WithAccount(api, api.ListingWithdraw)))
			r.Post("/{listing_id}/pause", WithError(WithAccount(api, api.ListingPause)))
			r.Post("/{listing_id}/unpause", WithError(WithAccount(api, api.ListingUnpause)))
		})
		r.Route("/users/{address}", func(r chi.Router) {
			r.Get("/listings", WithError(api.UserListingsList))
			r.Get("/listings/count", WithError(api.UserListingsCount))
			r.Get("/rentals", WithError(api.UserRentalsList))
			r.Get("/rentals/count", WithError(api.UserRentalsCount))
			r.Get("/balances", WithError(api.UserBalances))
			r.Post("/withdraw", WithError(WithAccount(api, api.UserFundsWithdraw)))
		})
		r.Route("/assets/{address}", func(r chi.Router) {
			r.Get("/listings", WithError(api.AssetListingsList))
			r.Get("/listings/count", WithError(api.AssetListingsCount))
			r.Get("/warpers", WithError(api.AssetWarpersList))
		})
		r.Route("/rentals", func(r chi.Router) {
			r.Post("/", WithError(WithAccount(api, api.RentalCreate)))
			r.Post("/estimate", WithError(api.RentalEstimate))
			r.Get("/{rental_id}", WithError(api.RentalGet))
			r.Get("/status/{class}/{data}", WithError(api.RentalStatus))
			r.Get("/collections/{collection_id}/renters/{address}/value", WithError(api.CollectionRentedValue))
		})
		r.Route("/universes", func(r chi.Router) {
			r.Post("/", WithError(WithAccount(api, api.UniverseCreate)))
			r.Get("/{universe_id}", WithError(api.UniverseGet))
			r.Post("/{universe_id}/name", WithError(WithAccount(api, api.UniverseSetName)))
			r.Post("/{universe_id}/fee", WithError(WithAccount(api, api.UniverseSetFee)))
			r.Get("/{universe_id}/warpers", WithError(api.UniverseWarpersList))
			r.Get("/{universe_id}/warpers/count", WithError(api.UniverseWarpersCount))
			r.Get("/{universe_id}/balances", WithError(api.UniverseBalances))
			r.Post("/{universe_id}/withdraw", WithError(WithAccount(api, api.UniverseFundsWithdraw)))
		})
		r.Route("/warpers", func(r chi.Router) {
			r.Post("/", WithError(WithAccount(api, api.WarperRegister)))
			r.Get("/{address}", WithError(api.WarperGet))
			r.Post("/{address}/pause", WithError(WithAccount(api, api.WarperPause)))
			r.Post("/{address}/unpause", WithError(WithAccount(api, api.WarperUnpause)))
			r.Post("/{address}/deregister", WithError(WithAccount(api, api.WarperDeregister)))
			r.Post("/controllers", WithError(WithAccount(api, api.WarperSetControllers)))
		})
		r.Route("/protocol", func(r chi.Router) {
			r.Get("/balances", WithError(api.ProtocolBalances))
			r.Post("/withdraw", WithError(WithAccount(api, api.ProtocolFundsWithdraw)))
		})
	})

	return r
}

// Check reports service liveness.
func (api *API) Check(w http.ResponseWriter, r *http.Request) (int, error) {
	_, err := api.Listings.ListingCount(r.Context())
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "service is not healthy")
	}
	return writeJSON(w, map[string]string{"status": "ok"})
}

// Run serves the API until the context is cancelled.
func (api *API) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    api.Addr,
		Handler: api.Routes(),
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	rentlog.L.Info().Str("addr", api.Addr).Msg("serving api")
	return server.ListenAndServe()
}

// pageParams parses the offset/limit query pair with sane defaults.
func pageParams(r *http.Request) (int, int, error) {
	offset := 0
	limit := 50
	var err error
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, terror.Error(fmt.Errorf("invalid offset %q", raw), "invalid offset")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, terror.Error(fmt.Errorf("invalid limit %q", raw), "invalid limit")
		}
	}
	return offset, limit, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, terror.Error(fmt.Errorf("invalid %s %q", name, raw), "invalid "+name)
	}
	return value, nil
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, terror.Error(fmt.Errorf("invalid %s %q", name, raw), "invalid "+name)
	}
	return common.HexToAddress(raw), nil
}
