package warehousetest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paramean/targeting/internal/warehouse"
)

// Person is one population row for fixtures. Unset utilization flags are 0.
type Person struct {
	ID         string
	Household  string
	AdultChild string
	Gender     string
	AgeGroup   string
	Product    string
	PMPMGroup  string
	MM         int64
	PMPM       float64
	PCPV       int64
	EXCL       int64
	BH         int64
	PREG       int64
	IPT        int64
	ED         int64
	HSHLD      int64
	ADULTS     int64
}

var populationDDL = `
	CREATE TABLE %s (
		MEMBER_ID          VARCHAR(64) NOT NULL,
		MEMBER_GENDER      VARCHAR(8),
		MEMBER_PRODUCT_GL  VARCHAR(64),
		AGE_GRP            VARCHAR(32),
		ADULT_CHILD        VARCHAR(8),
		MM                 INTEGER,
		TOT_PD             DOUBLE PRECISION,
		PMPM               DOUBLE PRECISION,
		PMPM_GRP           VARCHAR(32),
		PCPV               INTEGER,
		EXCL               INTEGER,
		CC                 INTEGER,
		BH                 INTEGER,
		PREG               INTEGER,
		IPT                INTEGER,
		ED                 INTEGER,
		ED_IPT             INTEGER,
		HSHLD              INTEGER,
		ADULTS             INTEGER,
		MEMBER_HEADOFHOUSE VARCHAR(64),
		ANCHO1_250_5000    INTEGER,
		ANCHO2_250_5000    INTEGER
	)`

// LoadPopulation creates table and bulk-loads people with COPY.
func LoadPopulation(ctx context.Context, pool *pgxpool.Pool, table warehouse.Table, people []Person) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(populationDDL, table)); err != nil {
		return fmt.Errorf("create population table: %w", err)
	}

	columns := []string{
		"member_id", "member_gender", "member_product_gl", "age_grp", "adult_child",
		"mm", "tot_pd", "pmpm", "pmpm_grp", "pcpv", "excl", "cc", "bh", "preg",
		"ipt", "ed", "ed_ipt", "hshld", "adults", "member_headofhouse",
		"ancho1_250_5000", "ancho2_250_5000",
	}

	rows := make([][]any, len(people))
	for i, p := range people {
		anchor := int32(0)
		if p.PMPM >= 250 && p.PMPM <= 5000 {
			anchor = 1
		}
		rows[i] = []any{
			p.ID, p.Gender, p.Product, p.AgeGroup, p.AdultChild,
			int32(p.MM), p.PMPM * float64(p.MM), p.PMPM, p.PMPMGroup,
			int32(p.PCPV), int32(p.EXCL), int32(0), int32(p.BH), int32(p.PREG),
			int32(p.IPT), int32(p.ED), int32(p.ED * p.IPT), int32(p.HSHLD), int32(p.ADULTS), p.Household,
			anchor, anchor,
		}
	}

	_, err := pool.CopyFrom(ctx, tableIdentifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy population: %w", err)
	}
	return nil
}

// Unquoted identifiers fold to lower case in PostgreSQL; COPY quotes them.
func tableIdentifier(t warehouse.Table) pgx.Identifier {
	return pgx.Identifier(strings.Split(strings.ToLower(string(t)), "."))
}
