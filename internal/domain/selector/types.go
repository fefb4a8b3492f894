// Package selector implements per-field predicates for generic queries over
// any registered entity type.
package selector

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"lifeline/internal/core/apperror"
)

// Kind tags the selector variant.
type Kind string

const (
	KindAny   Kind = "any"   // field ignored
	KindIn    Kind = "in"    // value equals one of Values
	KindRange Kind = "range" // Low <= value <= High
)

// Selector constrains one field.
type Selector struct {
	Kind   Kind  `json:"kind"`
	Values []any `json:"values,omitempty"`
	Low    any   `json:"low,omitempty"`
	High   any   `json:"high,omitempty"`
}

// Any matches every value.
func Any() Selector {
	return Selector{Kind: KindAny}
}

// In matches any of values.
func In(values ...any) Selector {
	return Selector{Kind: KindIn, Values: values}
}

// Between matches the inclusive range [low, high].
func Between(low, high any) Selector {
	return Selector{Kind: KindRange, Low: low, High: high}
}

// Validate rejects malformed selectors before storage is touched.
func (s Selector) Validate() error {
	if err := s.CheckShape(); err != nil {
		return err
	}
	if s.Kind != KindRange {
		return nil
	}
	c, ok := Compare(s.Low, s.High)
	if !ok {
		return apperror.NewQueryError("range bounds are not comparable").
			WithDetail("low", fmt.Sprintf("%v", s.Low)).
			WithDetail("high", fmt.Sprintf("%v", s.High))
	}
	if c > 0 {
		return apperror.NewQueryError("range selector is inverted").
			WithDetail("low", fmt.Sprintf("%v", s.Low)).
			WithDetail("high", fmt.Sprintf("%v", s.High))
	}
	return nil
}

// CheckShape validates the kind and the presence of values without
// comparing them, for literals not yet coerced to their column type.
func (s Selector) CheckShape() error {
	switch s.Kind {
	case KindAny, "":
		return nil
	case KindIn:
		if len(s.Values) == 0 {
			return apperror.NewQueryError("exact-set selector has no values")
		}
		for _, v := range s.Values {
			if v == nil {
				return apperror.NewQueryError("exact-set selector contains null")
			}
		}
		return nil
	case KindRange:
		if s.Low == nil || s.High == nil {
			return apperror.NewQueryError("range selector needs both bounds")
		}
		return nil
	default:
		return apperror.NewQueryError(fmt.Sprintf("unknown selector kind %q", s.Kind))
	}
}

// IsAny reports whether the selector leaves the field unconstrained.
func (s Selector) IsAny() bool {
	return s.Kind == KindAny || s.Kind == ""
}

// Sqlizer renders the selector against column; nil for Any.
func (s Selector) Sqlizer(column string) squirrel.Sqlizer {
	switch s.Kind {
	case KindIn:
		if len(s.Values) == 1 {
			return squirrel.Eq{column: s.Values[0]}
		}
		return squirrel.Eq{column: s.Values}
	case KindRange:
		return squirrel.And{
			squirrel.GtOrEq{column: s.Low},
			squirrel.LtOrEq{column: s.High},
		}
	}
	return nil
}

// Item binds a selector to a field (db column name).
type Item struct {
	Field string `json:"field"`
	Selector
}

// Predicate is an AND-combination of field selectors.
type Predicate []Item

// Validate checks every item; a field may appear once.
func (p Predicate) Validate() error {
	return p.check(Selector.Validate)
}

// CheckShape is Validate without bound comparison.
func (p Predicate) CheckShape() error {
	return p.check(Selector.CheckShape)
}

func (p Predicate) check(fn func(Selector) error) error {
	seen := make(map[string]struct{}, len(p))
	for _, item := range p {
		if item.Field == "" {
			return apperror.NewQueryError("selector without field")
		}
		if _, dup := seen[item.Field]; dup {
			return apperror.NewQueryError("field selected twice").WithDetail("field", item.Field)
		}
		seen[item.Field] = struct{}{}
		if err := fn(item.Selector); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("field", item.Field)
			}
			return err
		}
	}
	return nil
}

// Where renders the predicate; Any items contribute nothing.
func (p Predicate) Where() squirrel.And {
	and := squirrel.And{}
	for _, item := range p {
		if sq := item.Sqlizer(item.Field); sq != nil {
			and = append(and, sq)
		}
	}
	return and
}
