package vesting

import (
	"fmt"
	"math/bits"

	"github.com/bitfsorg/vestledger-go/ledger"
)

// ScheduleParams are the terms supplied when creating a schedule.
type ScheduleParams struct {
	Beneficiary     ledger.Address
	TotalAmount     uint64
	StartTime       uint64
	EndTime         uint64
	PeriodCount     uint64
	PeriodDuration  uint64
	AmountPerPeriod uint64
}

// Validate checks the terms against the creation time now and returns the
// first failure in a fixed order.
func (p ScheduleParams) Validate(now uint64) error {
	if p.Beneficiary.IsZero() {
		return fmt.Errorf("%w: beneficiary", ErrZeroAddress)
	}
	if p.TotalAmount == 0 {
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidAmount)
	}
	if p.StartTime < now {
		return fmt.Errorf("%w: start %d is before now %d", ErrInvalidStartTimestamp, p.StartTime, now)
	}
	if p.EndTime <= p.StartTime {
		return fmt.Errorf("%w: end %d is not after start %d", ErrInvalidEndTimestamp, p.EndTime, p.StartTime)
	}
	if p.PeriodCount == 0 {
		return fmt.Errorf("%w: period count must be positive", ErrInvalidPeriodsConfiguration)
	}
	if p.PeriodDuration == 0 {
		return fmt.Errorf("%w: period duration must be positive", ErrInvalidPeriodsConfiguration)
	}
	product, err := mulChecked(p.PeriodCount, p.AmountPerPeriod)
	if err != nil || product != p.TotalAmount {
		return fmt.Errorf("%w: %d periods of %d do not total %d",
			ErrInvalidPeriodsConfiguration, p.PeriodCount, p.AmountPerPeriod, p.TotalAmount)
	}
	return nil
}

// NominalEnd returns StartTime + PeriodCount*PeriodDuration, the instant the
// last period unlocks.
func (p ScheduleParams) NominalEnd() (uint64, error) {
	if p.PeriodCount == 0 || p.PeriodDuration == 0 {
		return 0, fmt.Errorf("%w: period count and duration must be positive", ErrInvalidPeriodsConfiguration)
	}
	span, err := mulChecked(p.PeriodCount, p.PeriodDuration)
	if err != nil {
		return 0, err
	}
	return addChecked(p.StartTime, span)
}

// PeriodsElapsed returns the number of whole periods completed at now,
// capped at PeriodCount.
func (s *Schedule) PeriodsElapsed(now uint64) uint64 {
	if now < s.StartTime || s.PeriodDuration == 0 {
		return 0
	}
	n := (now - s.StartTime) / s.PeriodDuration
	if n > s.PeriodCount {
		n = s.PeriodCount
	}
	return n
}

// Unlocked returns the cumulative amount released by now.
func (s *Schedule) Unlocked(now uint64) (uint64, error) {
	return mulChecked(s.PeriodsElapsed(now), s.AmountPerPeriod)
}

// Claimable returns the unlocked amount not yet claimed. It is zero before
// the start time.
func (s *Schedule) Claimable(now uint64) (uint64, error) {
	unlocked, err := s.Unlocked(now)
	if err != nil {
		return 0, err
	}
	if unlocked <= s.ClaimedAmount {
		return 0, nil
	}
	return unlocked - s.ClaimedAmount, nil
}

// Remaining returns the amount still held in custody.
func (s *Schedule) Remaining() uint64 {
	if s.ClaimedAmount >= s.TotalAmount {
		return 0
	}
	return s.TotalAmount - s.ClaimedAmount
}

// FullyVestedAt returns the first time at which the whole total is unlocked.
func (s *Schedule) FullyVestedAt() (uint64, error) {
	span, err := mulChecked(s.PeriodCount, s.PeriodDuration)
	if err != nil {
		return 0, err
	}
	return addChecked(s.StartTime, span)
}

func mulChecked(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmeticOverflow, a, b)
	}
	return lo, nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return sum, nil
}
