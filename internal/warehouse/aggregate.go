package warehouse

// Aggregate expressions are cast explicitly so every driver scans them into
// int64, float64 or string, and empty groups yield zero rather than NULL.

// Text renders col as a non-NULL string.
func Text(col Column) string {
	return "COALESCE(CAST(" + string(col) + " AS VARCHAR(255)), '')"
}

// Float renders col as a double. NULL stays NULL.
func Float(col Column) string {
	return "CAST(" + string(col) + " AS DOUBLE PRECISION)"
}

// Int renders col as a BIGINT. NULL stays NULL.
func Int(col Column) string {
	return "CAST(" + string(col) + " AS BIGINT)"
}

// SumInt renders SUM(expr) as a non-NULL BIGINT.
func SumInt(expr string) string {
	return "CAST(COALESCE(SUM(" + expr + "), 0) AS BIGINT)"
}

// SumFloat renders SUM(col) as a non-NULL double.
func SumFloat(col Column) string {
	return "CAST(COALESCE(SUM(" + string(col) + "), 0) AS DOUBLE PRECISION)"
}

// AvgFloat renders AVG(col) as a non-NULL double.
func AvgFloat(col Column) string {
	return "CAST(COALESCE(AVG(CAST(" + string(col) + " AS DOUBLE PRECISION)), 0) AS DOUBLE PRECISION)"
}

// CountWhen counts rows satisfying cond, which must be constant SQL text.
func CountWhen(cond string) string {
	return SumInt("CASE WHEN " + cond + " THEN 1 ELSE 0 END")
}
