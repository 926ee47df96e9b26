package model

// Action is the operating mode chosen for one half-hour slot.
// Keep these values stable; they are written to CSV and the run store.
type Action string

const (
	ActionCharge    Action = "charge"
	ActionDischarge Action = "discharge"
	ActionEPRX1     Action = "eprx1"
	ActionEPRX3     Action = "eprx3"
	ActionIdle      Action = "idle"
)

// Actions lists every action in a fixed order, for summaries and display.
func Actions() []Action {
	return []Action{ActionCharge, ActionDischarge, ActionEPRX1, ActionEPRX3, ActionIdle}
}
