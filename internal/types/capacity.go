package types

import (
	"errors"
	"math"
)

// Capacity is an amount of coinage measured in shannons, the smallest unit.
type Capacity uint64

// ErrCapacityOverflow is returned when checked capacity arithmetic would wrap.
var ErrCapacityOverflow = errors.New("capacity overflow")

// SafeAdd returns c + other, or ErrCapacityOverflow.
func (c Capacity) SafeAdd(other Capacity) (Capacity, error) {
	if other > math.MaxUint64-c {
		return 0, ErrCapacityOverflow
	}
	return c + other, nil
}

// SafeSub returns c - other, or ErrCapacityOverflow if other exceeds c.
func (c Capacity) SafeSub(other Capacity) (Capacity, error) {
	if other > c {
		return 0, ErrCapacityOverflow
	}
	return c - other, nil
}

// SafeMul returns c * factor, or ErrCapacityOverflow.
func (c Capacity) SafeMul(factor uint64) (Capacity, error) {
	if factor != 0 && uint64(c) > math.MaxUint64/factor {
		return 0, ErrCapacityOverflow
	}
	return c * Capacity(factor), nil
}

// SumCapacities folds a slice with checked addition.
func SumCapacities(values []Capacity) (Capacity, error) {
	var total Capacity
	for _, v := range values {
		var err error
		total, err = total.SafeAdd(v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
