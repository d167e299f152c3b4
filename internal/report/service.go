// Package report serves filtered summaries and paged rows of the population
// table.
package report

import (
	"context"
	"fmt"

	"github.com/paramean/targeting/internal/warehouse"
)

// Service runs report queries on one warehouse session per call.
type Service struct {
	wh    warehouse.Warehouse
	table warehouse.Table
}

// NewService creates a report service over table.
func NewService(wh warehouse.Warehouse, table warehouse.Table) *Service {
	return &Service{wh: wh, table: table}
}

// Summary computes totals and the four breakdowns.
func (s *Service) Summary(ctx context.Context, f Filters) (SummaryReport, error) {
	sess, err := s.wh.Acquire(ctx)
	if err != nil {
		return SummaryReport{}, fmt.Errorf("acquire warehouse session: %w", err)
	}
	defer sess.Release()

	d := sess.Dialect()
	where := f.Predicate()

	var out SummaryReport
	err = sess.Query(ctx, summaryStatement(d, s.table, where), func(sc warehouse.Scanner) error {
		m := &out.Summary
		return sc.Scan(&m.TotalMembers, &m.TotalMM, &m.TotalPaid, &m.AvgPMPM,
			&m.PCPVisits, &m.BHMembers, &m.EDMembers, &m.IPTMembers, &m.PregMembers, &m.Exclusions)
	})
	if err != nil {
		return SummaryReport{}, fmt.Errorf("report summary: %w", err)
	}

	breakdowns := []struct {
		name       string
		col        warehouse.Column
		orderByAvg bool
		dst        *[]Bucket
	}{
		{"report_by_gender", warehouse.ColGender, false, &out.ByGender},
		{"report_by_age", warehouse.ColAgeGroup, false, &out.ByAge},
		{"report_by_product", warehouse.ColProduct, false, &out.ByProduct},
		{"report_by_pmpm_grp", warehouse.ColPMPMGroup, true, &out.ByPMPMGroup},
	}
	for _, b := range breakdowns {
		buckets, err := queryBuckets(ctx, sess, breakdownStatement(d, s.table, b.col, where, b.orderByAvg, b.name))
		if err != nil {
			return SummaryReport{}, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = buckets
	}
	return out, nil
}

func queryBuckets(ctx context.Context, sess warehouse.Session, stmt warehouse.Statement) ([]Bucket, error) {
	buckets := []Bucket{}
	err := sess.Query(ctx, stmt, func(sc warehouse.Scanner) error {
		var b Bucket
		if err := sc.Scan(&b.Label, &b.Count, &b.AvgPMPM); err != nil {
			return err
		}
		buckets = append(buckets, b)
		return nil
	})
	return buckets, err
}

// Data returns one page of rows ordered by PMPM descending, with the total
// number of matching rows.
func (s *Service) Data(ctx context.Context, f Filters, page, limit int) (DataPage, error) {
	sess, err := s.wh.Acquire(ctx)
	if err != nil {
		return DataPage{}, fmt.Errorf("acquire warehouse session: %w", err)
	}
	defer sess.Release()

	d := sess.Dialect()
	where := f.Predicate()

	total, err := warehouse.QueryInt(ctx, sess, countStatement(d, s.table, where))
	if err != nil {
		return DataPage{}, fmt.Errorf("report count: %w", err)
	}

	rows := []warehouse.PopulationRow{}
	err = sess.Query(ctx, dataStatement(d, s.table, where, page, limit), func(sc warehouse.Scanner) error {
		row, err := warehouse.ScanPopulationRow(sc)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return DataPage{}, fmt.Errorf("report data: %w", err)
	}

	return DataPage{Rows: rows, Total: total, Page: page, Limit: limit}, nil
}
