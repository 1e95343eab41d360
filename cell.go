package sched

import (
	"github.com/go-enb/sched/internal/bcch"
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/lchan"
	"github.com/go-enb/sched/internal/uestate"
)

// CellConfig is the static configuration of one component carrier,
// mirroring sched_interface.h's cell_cfg_t: bandwidth, the SIB table, and
// the RACH/PUCCH parameters the RA and grid subsystems need (§3
// "cell_cfg_t").
type CellConfig struct {
	CCIndex int

	// NofPRB is the cell bandwidth in resource blocks (6, 15, 25, 50, 75,
	// or 100).
	NofPRB int

	SIBs       []bcch.SIBConfig
	SIWindowMS uint32

	PRACHConfig      uint32
	PRACHFreqOffset  uint32
	PRACHRARWindowMS uint32
	MaxHARQMsg3Tx    uint32

	NRBPUCCH int

	// MaxHARQRetx bounds DL/UL HARQ retransmissions for UEs on this
	// carrier absent a per-UE override (ue_cfg_t.maxharq_tx).
	MaxHARQRetx uint32

	// MaxAggrLevel caps the PDCCH aggregation level usable on this
	// carrier; 0 means no cap beyond the CQI-derived level.
	MaxAggrLevel uint32

	// NCCEByCFI overrides the derived per-CFI CCE budget (index 1..3); a
	// zero value at an index means "derive from NofPRB" (see cceTable).
	NCCEByCFI [constants.MaxCFI + 1]uint32
}

// nRBGForPRB returns the number of RBGs for a given bandwidth, ceil(nPRB/P),
// where the RBG grouping size P (TS 36.213 Table 7.1.6.1-1) is 1 below 11
// PRB, 2 up to 26, 3 up to 63, 4 otherwise.
func nRBGForPRB(nPRB int) int {
	switch {
	case nPRB <= 10:
		return nPRB
	case nPRB <= 26:
		return (nPRB + 1) / 2
	case nPRB <= 63:
		return (nPRB + 2) / 3
	default:
		return (nPRB + 3) / 4
	}
}

// cceTable approximates the per-CFI CCE budget from the cell bandwidth: 9
// REGs per CCE, with roughly 2 usable REGs per PRB per OFDM symbol once
// PCFICH/PHICH reservations are netted out. The exact REG/CCE allocation
// in TS 36.211 §6.8-6.9 depends on the PHICH group count and normal/MBSFN
// subframe type, which are not modelled here; this keeps the CCE budget
// monotonic in both bandwidth and CFI, which is all the PDCCH allocator
// needs.
func cceTable(nPRB int) [constants.MaxCFI + 1]uint32 {
	var t [constants.MaxCFI + 1]uint32
	regsPerSymbol := nPRB * 2
	for cfi := constants.MinCFI; cfi <= constants.MaxCFI; cfi++ {
		n := uint32(regsPerSymbol*cfi) / 9
		if n > constants.MaxCCEs {
			n = constants.MaxCCEs
		}
		t[cfi] = n
	}
	return t
}

// nCCEByCFI returns the cell's effective per-CFI CCE budget: the explicit
// override where given, the derived table otherwise.
func (c CellConfig) nCCEByCFI() [constants.MaxCFI + 1]uint32 {
	derived := cceTable(c.NofPRB)
	var out [constants.MaxCFI + 1]uint32
	for i := range out {
		if c.NCCEByCFI[i] != 0 {
			out[i] = c.NCCEByCFI[i]
		} else {
			out[i] = derived[i]
		}
	}
	return out
}

// BearerConfig is the per-UE, per-logical-channel configuration passed to
// BearerUECfg, mirroring ue_bearer_cfg_t.
type BearerConfig struct {
	Priority  int
	PBR       int // bytes/s, or lchan.PBRInfinity
	BSD       int // bucket size duration, ms
	LCG       int
	Direction lchan.Direction
}

func (b BearerConfig) toLChan() lchan.BearerConfig {
	return lchan.BearerConfig{Priority: b.Priority, PBR: b.PBR, BSD: b.BSD, LCG: b.LCG, Direction: b.Direction}
}

// UEConfig is the per-UE configuration passed to UECfg, mirroring
// ue_cfg_t's scheduling-relevant subset (PUCCH/CQI resource details that
// never reach the scheduling decision are omitted).
type UEConfig struct {
	MaxHARQRetx  uint32
	MaxMCSDL     uint32
	MaxMCSDLAlt  uint32
	MaxMCSUL     uint32
	FixedMCSDL   int // < 0 disables
	FixedMCSUL   int
	MaxAggrLevel uint32

	SRConfigured  bool
	SRPeriod      uint32
	SROffset      uint32
	NPUCCHFormat1 uint32
}

func (u UEConfig) toCarrierConfig() uestate.CarrierConfig {
	return uestate.CarrierConfig{
		MaxMCSDL:     u.MaxMCSDL,
		MaxMCSDLAlt:  u.MaxMCSDLAlt,
		MaxMCSUL:     u.MaxMCSUL,
		FixedMCSDL:   u.FixedMCSDL,
		FixedMCSUL:   u.FixedMCSUL,
		MaxAggrLevel: u.MaxAggrLevel,
		MaxHARQRetx:  u.MaxHARQRetx,
	}
}

func (u UEConfig) toPUCCHConfig() uestate.PUCCHConfig {
	return uestate.PUCCHConfig{
		SRConfigured:  u.SRConfigured,
		SRPeriod:      u.SRPeriod,
		SROffset:      u.SROffset,
		NPUCCHFormat1: u.NPUCCHFormat1,
	}
}

// defaultRACHCarrierConfig is the rach-only carrier configuration a UE
// gets at creation time (§3 "created on RACH (rach-only config with SRB0
// active)"), before RRC supplies the full ue_cfg_t via UECfg.
func defaultRACHCarrierConfig(cell CellConfig) uestate.CarrierConfig {
	return uestate.CarrierConfig{
		MaxMCSDL:     28,
		MaxMCSUL:     28,
		FixedMCSDL:   -1,
		FixedMCSUL:   -1,
		MaxAggrLevel: cell.MaxAggrLevel,
		MaxHARQRetx:  cell.MaxHARQRetx,
	}
}
