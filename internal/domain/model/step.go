package model

// Step is the position of a user inside the order conversation.
type Step string

const (
	StepIdle         Step = ""
	StepLink         Step = "link"
	StepPrice        Step = "price"
	StepShipping     Step = "shipping"
	StepContact      Step = "contact"
	StepConfirmation Step = "confirmation"
)

func (s Step) Valid() bool {
	switch s {
	case StepIdle, StepLink, StepPrice, StepShipping, StepContact, StepConfirmation:
		return true
	}
	return false
}
