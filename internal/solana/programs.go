package solana

import (
	"github.com/blocto/solana-go-sdk/common"
)

// ProgramFamily identifies the on-chain program that owns an instruction.
type ProgramFamily string

const (
	FamilySystem ProgramFamily = "system"
	FamilyStake  ProgramFamily = "stake"
	FamilyToken  ProgramFamily = "spl-token"
	FamilyVote   ProgramFamily = "vote"
)

// programFamilies is read-only after package init.
var programFamilies = map[string]ProgramFamily{
	common.SystemProgramID.ToBase58(): FamilySystem,
	common.StakeProgramID.ToBase58():  FamilyStake,
	common.TokenProgramID.ToBase58():  FamilyToken,
	common.VoteProgramID.ToBase58():   FamilyVote,
}

// FamilyOf maps a program address to its family.
func FamilyOf(programAddress string) (ProgramFamily, bool) {
	f, ok := programFamilies[programAddress]
	return f, ok
}

// ProgramAddress returns the address of a known family.
func ProgramAddress(f ProgramFamily) (string, bool) {
	for addr, fam := range programFamilies {
		if fam == f {
			return addr, true
		}
	}
	return "", false
}
