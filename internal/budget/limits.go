package budget

import (
	"context"
	"fmt"
	"strings"

	"spendguard/internal/core"
)

// LimitInput is one entry of a limit-set request.
type LimitInput struct {
	Category string
	Cap      core.Money
}

// ResolveLimit returns the configured monthly cap for (owner, category).
// ok is false when no limit exists, which is different from a zero cap.
func (s *Service) ResolveLimit(ctx context.Context, owner, category string) (cap core.Money, ok bool, err error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	l, ok, err := s.store.FindLimit(ctx, owner, category)
	if err != nil {
		return core.Money{}, false, fmt.Errorf("find limit: %w", err)
	}
	if !ok {
		return core.Money{}, false, nil
	}
	return l.Cap, true, nil
}

// SetLimits upserts every entry. The batch is validated upfront and rejected
// whole if any entry is invalid; nothing is written in that case.
func (s *Service) SetLimits(ctx context.Context, owner string, limits []LimitInput) error {
	if strings.TrimSpace(owner) == "" {
		return core.Invalid("owner", core.ErrEmptyOwner)
	}
	cleaned := make([]LimitInput, len(limits))
	for i, l := range limits {
		cat := strings.TrimSpace(l.Category)
		if cat == "" {
			return core.Invalid(fmt.Sprintf("limits[%d].category", i), core.ErrEmptyCategory)
		}
		if err := l.Cap.ValidateCap(); err != nil {
			return core.Invalid(fmt.Sprintf("limits[%d].cap", i), err)
		}
		cleaned[i] = LimitInput{Category: cat, Cap: l.Cap}
	}

	for _, l := range cleaned {
		sctx, cancel := s.storeCtx(ctx)
		err := s.store.UpsertLimit(sctx, owner, l.Category, l.Cap)
		cancel()
		if err != nil {
			return fmt.Errorf("upsert limit %q: %w", l.Category, err)
		}
		s.logger.InfoContext(ctx, "Limit set",
			"owner", owner,
			"category", l.Category,
			"cap_cents", l.Cap.Cents)
	}
	return nil
}

// ListLimits returns the owner's configured caps ordered by category.
func (s *Service) ListLimits(ctx context.Context, owner string) ([]core.CategoryLimit, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	limits, err := s.store.ListLimits(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list limits: %w", err)
	}
	return limits, nil
}
