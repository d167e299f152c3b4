package report

import (
	"strings"

	"github.com/paramean/targeting/internal/warehouse"
)

func summaryStatement(d warehouse.Dialect, table warehouse.Table, where warehouse.Predicate) warehouse.Statement {
	cols := []string{
		"COUNT(*) AS TOTAL_MEMBERS",
		warehouse.SumFloat(warehouse.MemberMonthsValue) + " AS TOTAL_MM",
		warehouse.SumFloat(warehouse.ColTotalPaid) + " AS TOTAL_PAID",
		warehouse.AvgFloat(warehouse.ColPMPM) + " AS AVG_PMPM",
		warehouse.CountWhen("PCPV = 1") + " AS PCP_VISITS",
		warehouse.CountWhen("BH > 0") + " AS BH_MEMBERS",
		warehouse.CountWhen("ED > 0") + " AS ED_MEMBERS",
		warehouse.CountWhen("IPT = 1") + " AS IPT_MEMBERS",
		warehouse.CountWhen("PREG > 0") + " AS PREG_MEMBERS",
		warehouse.CountWhen("EXCL = 1") + " AS EXCLUSIONS",
	}
	return warehouse.NewBuilder(d).
		Write("SELECT ", strings.Join(cols, ", "), " FROM ", string(table)).
		Where(where).
		Build("report_summary")
}

func breakdownStatement(d warehouse.Dialect, table warehouse.Table, col warehouse.Column, where warehouse.Predicate, orderByAvg bool, name string) warehouse.Statement {
	order := "LABEL"
	if orderByAvg {
		order = "AVG_PMPM"
	}
	return warehouse.NewBuilder(d).
		Write("SELECT ", warehouse.Text(col), " AS LABEL, COUNT(*) AS CNT, ", warehouse.AvgFloat(warehouse.ColPMPM), " AS AVG_PMPM",
			" FROM ", string(table)).
		Where(where).
		Write(" GROUP BY ", string(col), " ORDER BY ", order).
		Build(name)
}

func countStatement(d warehouse.Dialect, table warehouse.Table, where warehouse.Predicate) warehouse.Statement {
	return warehouse.NewBuilder(d).
		Write("SELECT COUNT(*) FROM ", string(table)).
		Where(where).
		Build("report_count")
}

func dataStatement(d warehouse.Dialect, table warehouse.Table, where warehouse.Predicate, page, limit int) warehouse.Statement {
	return warehouse.NewBuilder(d).
		Write("SELECT ", warehouse.PopulationSelect(), " FROM ", string(table)).
		Where(where).
		Write(" ORDER BY PMPM DESC").
		Paginate(limit, (page-1)*limit).
		Build("report_data")
}
