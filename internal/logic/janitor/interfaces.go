package janitor

import (
	"context"

	"github.com/skillcoder/podreplay/internal/logic/replay"
)

// Sweeper removes tagged replay resources.
type Sweeper interface {
	SweepCommand(ctx context.Context, filter replay.SweepFilter) (*replay.SweepReport, error)
}
