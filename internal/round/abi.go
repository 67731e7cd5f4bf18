package round

import (
	_ "embed"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/Bidon15/roundctl/internal/chain"
)

// B3trRound method names.
const (
	MethodInitialize = "initialize"

	MethodEmissions         = "emissions"
	MethodXAllocationPool   = "xAllocationPool"
	MethodXAllocationVoting = "xAllocationVoting"
	MethodX2EarnApps        = "x2EarnApps"

	MethodGetCurrentRoundID                   = "getCurrentRoundId"
	MethodGetPreviousRoundID                  = "getPreviousRoundId"
	MethodGetAllXAppsForRound                 = "getAllXAppsForRound"
	MethodGetUnclaimedXAppsForRound           = "getUnclaimedXAppsForRound"
	MethodGetUnclaimedXAppsForPreviousRound   = "getUnclaimedXAppsForPreviousRound"
	MethodGetUnclaimedXAppsWithAmounts        = "getUnclaimedXAppsWithAmounts"
	MethodGetUnclaimedXAppsWithNonZeroAmounts = "getUnclaimedXAppsWithNonZeroAmounts"
	MethodHasXAppClaimed                      = "hasXAppClaimed"

	MethodClaimAllocationsForRound              = "claimAllocationsForRound"
	MethodClaimAllocationsForPreviousRound      = "claimAllocationsForPreviousRound"
	MethodStartNewRoundAndDistributeAllocations = "startNewRoundAndDistributeAllocations"
)

//go:embed b3tr_round.abi.json
var abiJSON string

var parsedABI = mustParseABI(abiJSON)

func mustParseABI(definition string) abi.ABI {
	parsed, err := chain.ParseABI(definition)
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the B3trRound contract interface.
func ABI() abi.ABI {
	return parsedABI
}
