package domain

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// Event is the canonical, program-agnostic representation of one
// qualifying instruction. Corresponds to websockets_sol_event_log.
type Event struct {
	Program   string // program family, e.g. "system"
	Type      string // instruction name, e.g. "transfer"
	Signature string // transaction signature

	HasErr bool   // transaction failed
	Err    string // opaque error detail, "" when none

	Slot             uint64  // cause-side timestamp
	ObservedAt       int64   // ingestion-side timestamp (unix seconds)
	Fee              float64 // transaction fee, display units
	InstructionIndex int     // position within the transaction

	Authority    string
	Authority2   string
	Authority3   string
	Source       string
	Destination  string
	Destination2 string
	Misc1        string
	Misc2        string

	Amount     float64 // display units
	BaseAmount uint64  // base units
}

// LamportsToSOL converts base units to display units.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}
