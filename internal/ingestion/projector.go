package ingestion

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"solana-event-log/internal/domain"
	"solana-event-log/internal/solana"
)

// DefaultProjectors is the enabled set when none is configured.
var DefaultProjectors = []string{"system.transfer"}

// AllProjectors enables every registered projector.
const AllProjectors = "all"

// TxContext carries the transaction-level fields shared by all of its events.
type TxContext struct {
	Signature  string
	Slot       uint64
	HasErr     bool
	Err        string
	Fee        float64 // display units
	ObservedAt int64
}

// Projector maps a classified instruction to a canonical event. ok is false
// when the instruction does not qualify.
type Projector interface {
	Project(c Classified, tx TxContext) (e *domain.Event, ok bool)
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(c Classified, tx TxContext) (*domain.Event, bool)

// Project calls f.
func (f ProjectorFunc) Project(c Classified, tx TxContext) (*domain.Event, bool) {
	return f(c, tx)
}

// ProjectorKey identifies a projector by program family and instruction name.
type ProjectorKey struct {
	Family      solana.ProgramFamily
	Instruction string
}

func (k ProjectorKey) String() string {
	return string(k.Family) + "." + k.Instruction
}

// ParseProjectorKey parses "family.instruction".
func ParseProjectorKey(s string) (ProjectorKey, error) {
	family, instruction, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || family == "" || instruction == "" {
		return ProjectorKey{}, fmt.Errorf("invalid projector %q: want family.instruction", s)
	}
	return ProjectorKey{Family: solana.ProgramFamily(family), Instruction: instruction}, nil
}

// ProjectorRegistry holds the enabled projectors.
type ProjectorRegistry struct {
	projectors map[ProjectorKey]Projector
}

// NewProjectorRegistry builds the registry of enabled projectors. Amount
// bearing projectors drop events whose amount is not strictly above
// minAmount (display units). An empty enabled list selects DefaultProjectors.
func NewProjectorRegistry(minAmount float64, enabled []string) (*ProjectorRegistry, error) {
	if minAmount < 0 || math.IsNaN(minAmount) || math.IsInf(minAmount, 0) {
		return nil, fmt.Errorf("invalid minimum amount %v", minAmount)
	}
	if len(enabled) == 0 {
		enabled = DefaultProjectors
	}

	known := builtinProjectors(minAmount)
	r := &ProjectorRegistry{projectors: make(map[ProjectorKey]Projector)}

	for _, name := range enabled {
		if strings.TrimSpace(name) == AllProjectors {
			for k, p := range known {
				r.projectors[k] = p
			}
			continue
		}
		key, err := ParseProjectorKey(name)
		if err != nil {
			return nil, err
		}
		p, ok := known[key]
		if !ok {
			return nil, fmt.Errorf("unknown projector %q", name)
		}
		r.projectors[key] = p
	}
	return r, nil
}

// Register adds or replaces a projector.
func (r *ProjectorRegistry) Register(key ProjectorKey, p Projector) {
	r.projectors[key] = p
}

// Lookup returns the projector for the pair.
func (r *ProjectorRegistry) Lookup(family solana.ProgramFamily, instruction string) (Projector, bool) {
	p, ok := r.projectors[ProjectorKey{Family: family, Instruction: instruction}]
	return p, ok
}

// Enabled returns the enabled projector names, sorted.
func (r *ProjectorRegistry) Enabled() []string {
	names := make([]string, 0, len(r.projectors))
	for k := range r.projectors {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return names
}

// KnownProjectors returns every projector name that can be enabled, sorted.
func KnownProjectors() []string {
	var names []string
	for k := range builtinProjectors(0) {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return names
}

// threshold compares base-unit amounts against a display-unit minimum.
type threshold struct {
	min float64
}

// exceeds reports whether amount (base units at decimals) is strictly above
// the minimum. The minimum is converted to base units and rounded so that a
// value equal to the threshold never passes.
func (t threshold) exceeds(amount uint64, decimals uint8) bool {
	minBase := math.Round(t.min * math.Pow10(int(decimals)))
	if minBase >= math.MaxUint64 {
		return false
	}
	return amount > uint64(minBase)
}

func toDisplay(amount uint64, decimals uint8) float64 {
	return float64(amount) / math.Pow10(int(decimals))
}

func newEvent(c Classified, tx TxContext) *domain.Event {
	return &domain.Event{
		Program:          string(c.Family),
		Type:             c.Record.Instruction,
		Signature:        tx.Signature,
		HasErr:           tx.HasErr,
		Err:              tx.Err,
		Slot:             tx.Slot,
		ObservedAt:       tx.ObservedAt,
		Fee:              tx.Fee,
		InstructionIndex: c.Index,
	}
}

const solDecimals = 9

func builtinProjectors(minAmount float64) map[ProjectorKey]Projector {
	t := threshold{min: minAmount}

	return map[ProjectorKey]Projector{
		{solana.FamilySystem, "transfer"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			lamports := c.Record.Uint("lamports")
			if !t.exceeds(lamports, solDecimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Destination = c.Account(1)
			e.BaseAmount = lamports
			e.Amount = domain.LamportsToSOL(lamports)
			return e, true
		}),

		{solana.FamilySystem, "createAccount"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			lamports := c.Record.Uint("lamports")
			if !t.exceeds(lamports, solDecimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Destination = c.Account(1)
			e.Misc1 = strconv.FormatUint(c.Record.Uint("space"), 10)
			e.Misc2 = c.Record.PubkeyString("owner")
			e.BaseAmount = lamports
			e.Amount = domain.LamportsToSOL(lamports)
			return e, true
		}),

		{solana.FamilyStake, "initialize"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Destination = c.Account(0)
			e.Authority = c.Record.PubkeyString("authorized.staker")
			e.Authority2 = c.Record.PubkeyString("authorized.withdrawer")
			e.Authority3 = c.Record.PubkeyString("lockup.custodian")
			e.Misc1 = strconv.FormatUint(c.Record.Uint("lockup.epoch"), 10)
			e.Misc2 = strconv.FormatInt(c.Record.Int("lockup.unix_timestamp"), 10)
			return e, true
		}),

		{solana.FamilyStake, "authorize"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Authority = c.Account(2)
			e.Destination = c.Record.PubkeyString("new_authority")
			e.Misc1 = stakeAuthorityType(c.Record.Uint("authority_type"))
			return e, true
		}),

		{solana.FamilyStake, "delegate"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Destination = c.Account(0)
			e.Destination2 = c.Account(1)
			e.Authority = c.Account(5)
			return e, true
		}),

		{solana.FamilyStake, "split"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			lamports := c.Record.Uint("lamports")
			if !t.exceeds(lamports, solDecimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Destination = c.Account(1)
			e.Authority = c.Account(2)
			e.BaseAmount = lamports
			e.Amount = domain.LamportsToSOL(lamports)
			return e, true
		}),

		{solana.FamilyStake, "withdraw"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			lamports := c.Record.Uint("lamports")
			if !t.exceeds(lamports, solDecimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Destination = c.Account(1)
			e.Authority2 = c.Account(4)
			e.BaseAmount = lamports
			e.Amount = domain.LamportsToSOL(lamports)
			return e, true
		}),

		{solana.FamilyStake, "deactivate"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Authority = c.Account(2)
			return e, true
		}),

		{solana.FamilyStake, "merge"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Destination = c.Account(0)
			e.Source = c.Account(1)
			e.Authority = c.Account(4)
			return e, true
		}),

		{solana.FamilyVote, "withdraw"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			lamports := c.Record.Uint("lamports")
			if !t.exceeds(lamports, solDecimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Destination = c.Account(1)
			e.Authority2 = c.Account(2)
			e.BaseAmount = lamports
			e.Amount = domain.LamportsToSOL(lamports)
			return e, true
		}),

		{solana.FamilyVote, "changeCommission"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Authority2 = c.Account(1)
			e.Misc1 = strconv.FormatUint(c.Record.Uint("commission"), 10)
			return e, true
		}),

		{solana.FamilyToken, "transferChecked"}: ProjectorFunc(func(c Classified, tx TxContext) (*domain.Event, bool) {
			amount := c.Record.Uint("amount")
			decimals := uint8(c.Record.Uint("decimals"))
			if !t.exceeds(amount, decimals) {
				return nil, false
			}
			e := newEvent(c, tx)
			e.Source = c.Account(0)
			e.Misc1 = c.Account(1)
			e.Destination = c.Account(2)
			e.Authority = c.Account(3)
			e.Misc2 = strconv.FormatUint(uint64(decimals), 10)
			e.BaseAmount = amount
			e.Amount = toDisplay(amount, decimals)
			return e, true
		}),
	}
}

func stakeAuthorityType(v uint64) string {
	switch v {
	case 0:
		return "staker"
	case 1:
		return "withdrawer"
	default:
		return strconv.FormatUint(v, 10)
	}
}
