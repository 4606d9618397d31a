package domain

// SaleState is the lifecycle state of a sale handled by a register session.
type SaleState string

const (
	SaleStateBuilding  SaleState = "building"
	SaleStatePaying    SaleState = "paying"
	SaleStateCompleted SaleState = "completed"
	SaleStateParked    SaleState = "parked"
	SaleStateRemoved   SaleState = "removed"
)

var saleTransitions = map[SaleState][]SaleState{
	SaleStateBuilding: {SaleStatePaying, SaleStateCompleted, SaleStateParked},
	SaleStatePaying:   {SaleStateBuilding, SaleStateCompleted},
	SaleStateParked:   {SaleStateBuilding, SaleStateRemoved},
}

// CanTransitionTo reports whether a sale may move from one state to another.
func CanTransitionTo(from, to SaleState) bool {
	for _, s := range saleTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s SaleState) IsTerminal() bool {
	return s == SaleStateCompleted || s == SaleStateRemoved
}

// String representation (for logging)
func (s SaleState) String() string {
	return string(s)
}
