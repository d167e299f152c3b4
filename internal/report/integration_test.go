package report

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramean/targeting/internal/shared/database/dbtest"
	"github.com/paramean/targeting/internal/warehouse"
	"github.com/paramean/targeting/internal/warehouse/warehousetest"
)

func TestReportAgainstPostgres(t *testing.T) {
	pool := dbtest.Start(t, 15435)
	ctx := context.Background()

	load := func(t *testing.T, name string, people []warehousetest.Person) *Service {
		t.Helper()
		tbl, err := warehouse.ParseTable(name)
		require.NoError(t, err)
		require.NoError(t, warehousetest.LoadPopulation(ctx, pool, tbl, people))
		return NewService(warehouse.NewPostgres(pool), tbl)
	}

	t.Run("rows with null numeric columns are returned", func(t *testing.T) {
		svc := load(t, "REPORT_NULLS", []warehousetest.Person{
			{ID: "M1", Household: "H1", AdultChild: "Adult", Gender: "F", MM: 12, PMPM: 900, ED: 1, IPT: 1, HSHLD: 2, ADULTS: 1},
			{ID: "M2", Household: "H1", AdultChild: "Child", Gender: "F", MM: 12, PMPM: 400, HSHLD: 2, ADULTS: 1},
		})
		_, err := pool.Exec(ctx, `UPDATE REPORT_NULLS
			SET MM = NULL, TOT_PD = NULL, PMPM = NULL, ED_IPT = NULL, HSHLD = NULL
			WHERE MEMBER_ID = 'M1'`)
		require.NoError(t, err)

		page, err := svc.Data(ctx, Filters{}, 1, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		require.Len(t, page.Rows, 2)

		byID := map[string]warehouse.PopulationRow{}
		for _, r := range page.Rows {
			byID[r.MemberID] = r
		}
		m1 := byID["M1"]
		assert.Nil(t, m1.MM)
		assert.Nil(t, m1.TotalPaid)
		assert.Nil(t, m1.PMPM)
		assert.Nil(t, m1.EDInpatient)
		assert.Nil(t, m1.Household)
		require.NotNil(t, m1.ED)
		assert.Equal(t, int64(1), *m1.ED)

		m2 := byID["M2"]
		require.NotNil(t, m2.PMPM)
		assert.Equal(t, 400.0, *m2.PMPM)
		require.NotNil(t, m2.MM)
		assert.Equal(t, 12.0, *m2.MM)

		summary, err := svc.Summary(ctx, Filters{})
		require.NoError(t, err)
		assert.Equal(t, float64(12), summary.Summary.TotalMM)
	})

	t.Run("fractional member months are summed without truncation", func(t *testing.T) {
		var people []warehousetest.Person
		for i := 0; i < 4; i++ {
			people = append(people, warehousetest.Person{
				ID: fmt.Sprintf("F%d", i), Household: "H1", AdultChild: "Adult", MM: 1, PMPM: 300, HSHLD: 4, ADULTS: 4,
			})
		}
		svc := load(t, "REPORT_FRACTIONAL", people)
		_, err := pool.Exec(ctx, `ALTER TABLE REPORT_FRACTIONAL ALTER COLUMN MM TYPE DOUBLE PRECISION`)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `UPDATE REPORT_FRACTIONAL SET MM = 2.5`)
		require.NoError(t, err)

		summary, err := svc.Summary(ctx, Filters{})
		require.NoError(t, err)
		assert.Equal(t, 10.0, summary.Summary.TotalMM)

		page, err := svc.Data(ctx, Filters{}, 1, 10)
		require.NoError(t, err)
		require.NotEmpty(t, page.Rows)
		require.NotNil(t, page.Rows[0].MM)
		assert.Equal(t, 2.5, *page.Rows[0].MM)
	})

	t.Run("page beyond the data is empty", func(t *testing.T) {
		svc := load(t, "REPORT_PAGES", []warehousetest.Person{
			{ID: "P1", Household: "H1", AdultChild: "Adult", MM: 12, PMPM: 300, HSHLD: 1, ADULTS: 1},
		})

		page, err := svc.Data(ctx, Filters{}, MaxPage, MaxLimit)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		assert.Empty(t, page.Rows)
	})
}
