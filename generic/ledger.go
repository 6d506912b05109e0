/*
ledger.go - Append-only transfer log

PURPOSE:
  The Ledger is the audit trail of every movement the upgrades performed:
  which actor, which container, which direction, how many points and
  units, on which tick, automatic or manual.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transfers cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transfer (no duplicates)

DERIVED VALUES:
  NetUnitsAt replays a container's transfers to compute how many units
  the upgrades moved into (positive) or out of (negative) its tank up to a
  tick. It is a derived value, never stored.

SEE ALSO:
  - store.go: Low-level persistence interface
  - api/scheduler.go: The tick driver appends each tick's transfers
*/
package generic

import "context"

type Ledger interface {
	Append(ctx context.Context, t Transfer) error
	AppendBatch(ctx context.Context, ts []Transfer) error
	Transfers(ctx context.Context, containerID ContainerID) ([]Transfer, error)
	TransfersInRange(ctx context.Context, containerID ContainerID, from, to Tick) ([]Transfer, error)
	NetUnitsAt(ctx context.Context, containerID ContainerID, at Tick) (int64, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, t Transfer) error {
	if t.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, t.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, t)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, ts []Transfer) error {
	for _, t := range ts {
		if t.IdempotencyKey == "" {
			continue
		}
		exists, err := l.Store.Exists(ctx, t.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, ts)
}

func (l *DefaultLedger) Transfers(ctx context.Context, containerID ContainerID) ([]Transfer, error) {
	return l.Store.Load(ctx, containerID)
}

func (l *DefaultLedger) TransfersInRange(ctx context.Context, containerID ContainerID, from, to Tick) ([]Transfer, error) {
	return l.Store.LoadRange(ctx, containerID, from, to)
}

func (l *DefaultLedger) NetUnitsAt(ctx context.Context, containerID ContainerID, at Tick) (int64, error) {
	ts, err := l.Store.Load(ctx, containerID)
	if err != nil {
		return 0, err
	}
	var net int64
	for _, t := range ts {
		if t.Tick > at {
			break
		}
		net += t.SignedUnits()
	}
	return net, nil
}
