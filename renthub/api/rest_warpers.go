package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

type WarperRegisterRequest struct {
	Address    string `json:"address"`
	Original   string `json:"original"`
	Controller string `json:"controller"`
	UniverseID int64  `json:"universe_id"`
	Name       string `json:"name"`
}

func (api *API) WarperRegister(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	req := &WarperRegisterRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	for name, raw := range map[string]string{"address": req.Address, "original": req.Original, "controller": req.Controller} {
		if !common.IsHexAddress(raw) {
			return http.StatusBadRequest, terror.Error(fmt.Errorf("invalid %s %q", name, raw), "invalid "+name)
		}
	}

	warper := &types.Warper{
		Address:    common.HexToAddress(req.Address),
		Original:   common.HexToAddress(req.Original),
		AssetClass: types.AssetClassERC721,
		Controller: common.HexToAddress(req.Controller),
		UniverseID: req.UniverseID,
		Name:       req.Name,
	}
	err = api.Warpers.RegisterWarper(r.Context(), account, warper)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, warper)
}

func (api *API) WarperGet(w http.ResponseWriter, r *http.Request) (int, error) {
	address, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	warper, err := api.Warpers.WarperInfo(r.Context(), address)
	if err != nil {
		return http.StatusNotFound, err
	}
	return writeJSON(w, warper)
}

func (api *API) WarperPause(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	address, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Warpers.PauseWarper(r.Context(), account, address)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) WarperUnpause(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	address, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Warpers.UnpauseWarper(r.Context(), account, address)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) WarperDeregister(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	address, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Warpers.DeregisterWarper(r.Context(), account, address)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

type WarperSetControllersRequest struct {
	Warpers    []string `json:"warpers"`
	Controller string   `json:"controller"`
}

func (api *API) WarperSetControllers(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	req := &WarperSetControllersRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	if !common.IsHexAddress(req.Controller) {
		return http.StatusBadRequest, terror.Error(fmt.Errorf("invalid controller %q", req.Controller), "invalid controller")
	}
	addresses := make([]common.Address, 0, len(req.Warpers))
	for _, raw := range req.Warpers {
		if !common.IsHexAddress(raw) {
			return http.StatusBadRequest, terror.Error(fmt.Errorf("invalid warper address %q", raw), "invalid warper address")
		}
		addresses = append(addresses, common.HexToAddress(raw))
	}
	err = api.Warpers.SetWarperControllers(r.Context(), account, addresses, common.HexToAddress(req.Controller))
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) UniverseWarpersList(w http.ResponseWriter, r *http.Request) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	warpers, err := api.Warpers.UniverseWarpers(r.Context(), universeID, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, warpers)
}

func (api *API) UniverseWarpersCount(w http.ResponseWriter, r *http.Request) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	count, err := api.Warpers.UniverseWarperCount(r.Context(), universeID)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]int{"count": count})
}

func (api *API) AssetWarpersList(w http.ResponseWriter, r *http.Request) (int, error) {
	original, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	warpers, err := api.Warpers.AssetWarpers(r.Context(), original, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, warpers)
}
