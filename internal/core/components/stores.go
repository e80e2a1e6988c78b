package components

import "github.com/zeusync/cellsync/internal/core/ecs"

// Stores caches the typed stores used on the hot path so handlers skip the
// registry's type lookup.
type Stores struct {
	Players    *ecs.Store[Player]
	Characters *ecs.Store[Character]
	Cells      *ecs.Store[CellID]
	Owners     *ecs.Store[Owner]
}

// Bind registers (or fetches) every store on r.
func Bind(r *ecs.Registry) Stores {
	return Stores{
		Players:    ecs.Register[Player](r),
		Characters: ecs.Register[Character](r),
		Cells:      ecs.Register[CellID](r),
		Owners:     ecs.Register[Owner](r),
	}
}
