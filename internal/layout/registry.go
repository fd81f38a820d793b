package layout

import (
	sdksystem "github.com/blocto/solana-go-sdk/program/system"
	sdkstake "github.com/blocto/solana-go-sdk/program/stake"
	sdktoken "github.com/blocto/solana-go-sdk/program/token"

	"solana-event-log/internal/solana"
)

// Vote program instruction tags.
const (
	voteInstructionWithdraw         uint32 = 3
	voteInstructionUpdateCommission uint32 = 5
)

// tagWidths holds the discriminator width per family.
var tagWidths = map[solana.ProgramFamily]int{
	solana.FamilySystem: 4,
	solana.FamilyStake:  4,
	solana.FamilyVote:   4,
	solana.FamilyToken:  1,
}

// TagWidth returns the discriminator width of a family.
func TagWidth(f solana.ProgramFamily) (int, bool) {
	w, ok := tagWidths[f]
	return w, ok
}

type schemaKey struct {
	family        solana.ProgramFamily
	discriminator uint32
}

// Registry maps (family, discriminator) to a schema. Immutable once built.
type Registry struct {
	schemas map[schemaKey]Schema
}

// Entry is one registration of a schema.
type Entry struct {
	Family        solana.ProgramFamily
	Discriminator uint32
	Schema        Schema
}

// NewRegistry builds a registry from entries. Later entries win on duplicate keys.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{schemas: make(map[schemaKey]Schema, len(entries))}
	for _, e := range entries {
		r.schemas[schemaKey{family: e.Family, discriminator: e.Discriminator}] = e.Schema
	}
	return r
}

// SchemaFor returns the schema for the pair; ok is false when the
// instruction type is not of interest.
func (r *Registry) SchemaFor(family solana.ProgramFamily, discriminator uint32) (Schema, bool) {
	s, ok := r.schemas[schemaKey{family: family, discriminator: discriminator}]
	return s, ok
}

// Entries returns all registrations.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.schemas))
	for k, s := range r.schemas {
		out = append(out, Entry{Family: k.family, Discriminator: k.discriminator, Schema: s})
	}
	return out
}

var defaultRegistry = NewRegistry(DefaultEntries())

// DefaultRegistry returns the process-wide registry of known layouts.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// DefaultEntries lists the known instruction layouts.
func DefaultEntries() []Entry {
	return []Entry{
		// system program
		{solana.FamilySystem, uint32(sdksystem.InstructionCreateAccount), Schema{
			Instruction: "createAccount",
			Fields:      []Field{U64("lamports"), U64("space"), Pubkey("owner")},
		}},
		{solana.FamilySystem, uint32(sdksystem.InstructionAssign), Schema{
			Instruction: "assign",
			Fields:      []Field{Pubkey("owner")},
		}},
		{solana.FamilySystem, uint32(sdksystem.InstructionTransfer), Schema{
			Instruction: "transfer",
			Fields:      []Field{U64("lamports")},
		}},
		{solana.FamilySystem, uint32(sdksystem.InstructionAdvanceNonceAccount), Schema{
			Instruction: "advanceNonceAccount",
		}},

		// stake program
		{solana.FamilyStake, uint32(sdkstake.InstructionInitialize), Schema{
			Instruction: "initialize",
			Fields: []Field{
				Struct("authorized", Pubkey("staker"), Pubkey("withdrawer")),
				Struct("lockup", I64("unix_timestamp"), U64("epoch"), Pubkey("custodian")),
			},
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionAuthorize), Schema{
			Instruction: "authorize",
			Fields:      []Field{Pubkey("new_authority"), U32("authority_type")},
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionDelegateStake), Schema{
			Instruction: "delegate",
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionSplit), Schema{
			Instruction: "split",
			Fields:      []Field{U64("lamports")},
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionWithdraw), Schema{
			Instruction: "withdraw",
			Fields:      []Field{U64("lamports")},
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionDeactivate), Schema{
			Instruction: "deactivate",
		}},
		{solana.FamilyStake, uint32(sdkstake.InstructionMerge), Schema{
			Instruction: "merge",
		}},

		// spl-token program
		{solana.FamilyToken, uint32(sdktoken.InstructionTransfer), Schema{
			Instruction: "transfer",
			Fields:      []Field{U64("amount")},
		}},
		{solana.FamilyToken, uint32(sdktoken.InstructionTransferChecked), Schema{
			Instruction: "transferChecked",
			Fields:      []Field{U64("amount"), U8("decimals")},
		}},

		// vote program
		{solana.FamilyVote, voteInstructionWithdraw, Schema{
			Instruction: "withdraw",
			Fields:      []Field{U64("lamports")},
		}},
		{solana.FamilyVote, voteInstructionUpdateCommission, Schema{
			Instruction: "changeCommission",
			Fields:      []Field{U8("commission")},
		}},
	}
}
