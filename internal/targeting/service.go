package targeting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/warehouse"
)

// Service runs targeting analyses against the population table.
type Service struct {
	wh    warehouse.Warehouse
	table warehouse.Table
	log   *zap.Logger
}

// NewService creates a targeting service over table.
func NewService(wh warehouse.Warehouse, table warehouse.Table, log *zap.Logger) *Service {
	return &Service{wh: wh, table: table, log: log}
}

// Run computes the funnel and the household rollup on one borrowed session
// so every statement sees the same connection state.
func (s *Service) Run(ctx context.Context, c Criteria) (Result, error) {
	start := time.Now()

	sess, err := s.wh.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire warehouse session: %w", err)
	}
	defer sess.Release()

	funnel, final, err := RunFunnel(ctx, sess, s.table, c)
	if err != nil {
		return Result{}, fmt.Errorf("funnel: %w", err)
	}

	out, err := ComputeAnchorRollup(ctx, sess, s.table, final, funnel[len(funnel)-1])
	if err != nil {
		return Result{}, fmt.Errorf("anchor rollup: %w", err)
	}

	s.log.Info("targeting run complete",
		zap.Int("steps", len(funnel)),
		zap.Int64("start_total", funnel[0].Total),
		zap.Int64("final_total", funnel[len(funnel)-1].Total),
		zap.Duration("duration", time.Since(start)),
	)
	return Result{Funnel: funnel, OutputTable: out}, nil
}
