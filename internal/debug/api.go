// Package debug exposes a masked view of the warehouse connection settings.
package debug

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paramean/targeting/internal/shared/config"
	"github.com/paramean/targeting/internal/shared/errors"
)

const notSet = "NOT SET"

// WarehouseInfo is the masked configuration echo. The password is reduced to
// its length and outer three characters.
type WarehouseInfo struct {
	Driver         string `json:"driver"`
	Account        string `json:"account"`
	Username       string `json:"username"`
	PasswordLength int    `json:"password_length"`
	PasswordFirst3 string `json:"password_first3"`
	PasswordLast3  string `json:"password_last3"`
	Database       string `json:"database"`
	Schema         string `json:"schema"`
	Warehouse      string `json:"warehouse"`
	Table          string `json:"table"`
}

// Describe masks cfg.
func Describe(cfg config.WarehouseConfig) WarehouseInfo {
	info := WarehouseInfo{
		Driver:         orNotSet(cfg.Driver),
		Account:        orNotSet(cfg.Account),
		Username:       orNotSet(cfg.User),
		PasswordLength: len(cfg.Password),
		PasswordFirst3: notSet,
		PasswordLast3:  notSet,
		Database:       orNotSet(cfg.Database),
		Schema:         orNotSet(cfg.Schema),
		Warehouse:      orNotSet(cfg.Warehouse),
		Table:          orNotSet(cfg.PopulationTable),
	}
	if p := cfg.Password; p != "" {
		info.PasswordFirst3 = p[:min(3, len(p))]
		info.PasswordLast3 = p[max(0, len(p)-3):]
	}
	return info
}

func orNotSet(s string) string {
	if s == "" {
		return notSet
	}
	return s
}

// Routes registers GET / returning the masked warehouse settings.
func Routes(cfg config.WarehouseConfig) chi.Router {
	info := Describe(cfg)
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		errors.WriteJSON(w, http.StatusOK, info)
	})
	return r
}
