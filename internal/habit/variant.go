package habit

import "time"

// Variant is the validated shape of a habit: either Pleasant or Useful.
type Variant interface {
	isVariant()
}

// Pleasant habits carry no schedule and serve as rewards for useful ones.
type Pleasant struct{}

func (Pleasant) isVariant() {}

// Useful habits are reminded on a cadence and earn exactly one incentive.
// Values are produced by Validator.Validate; the fields stay unexported so
// callers cannot assemble an inconsistent one.
type Useful struct {
	incentive Incentive
	cadence   Cadence
}

func (Useful) isVariant() {}

func (u Useful) Incentive() Incentive { return u.incentive }
func (u Useful) Cadence() Cadence     { return u.cadence }

// Incentive is either a Reward or a RelatedHabit.
type Incentive interface {
	isIncentive()
}

// Reward is free text the user grants themselves after the habit.
type Reward string

func (Reward) isIncentive() {}

// RelatedHabit is the id of a pleasant habit done as the reward.
type RelatedHabit int64

func (RelatedHabit) isIncentive() {}

// Cadence is everything the schedule compiler needs.
type Cadence struct {
	Template string
	Time     time.Time
	EndTime  *time.Time
	Days     []int
}
