package sched

import "github.com/go-enb/sched/internal/constants"

// Re-exported constants callers configuring a cell need, without
// reaching into internal/.
const (
	NumTTI    = constants.NumTTI
	NumDLHarq = constants.NumDLHarq
	NumULHarq = constants.NumULHarq
	MaxTB     = constants.MaxTB

	MaxRBGs = constants.MaxRBGs
	MaxPRBs = constants.MaxPRBs
	MaxCCEs = constants.MaxCCEs
	MaxCFI  = constants.MaxCFI
	MinCFI  = constants.MinCFI

	NumLCIDs  = constants.NumLCIDs
	NumLCGs   = constants.NumLCGs
	MinMACSDU = constants.MinMACSDU

	SIB1PeriodRF      = constants.SIB1PeriodRF
	SIB1SfIdx         = constants.SIB1SfIdx
	MaxSIBTxPerPeriod = constants.MaxSIBTxPerPeriod
	MaxRARGrants      = constants.MaxRARGrants
)
