package sched

import (
	"github.com/go-enb/sched/internal/bcch"
	"github.com/go-enb/sched/internal/lchan"
)

// TestFixture builds a ready-to-use Scheduler for tests: a single
// 25-PRB cell with SIB1 configured, plus helpers to carry a UE all the
// way from RACH to an attached, bearer-configured state without every
// test re-deriving the FAPI call sequence by hand.
type TestFixture struct {
	*Scheduler

	nextPreamble  uint32
	nextTempCRNTI uint16
}

// NewTestFixture returns a Scheduler already configured with one cell,
// ready to accept DLRachInfo calls.
func NewTestFixture() *TestFixture {
	s := New(nil)
	cell := CellConfig{
		NofPRB: 25,
		SIBs: []bcch.SIBConfig{
			{Index: 0, LenBytes: 18},
		},
		SIWindowMS:       20,
		PRACHRARWindowMS: 10,
		MaxHARQMsg3Tx:    5,
		NRBPUCCH:         2,
		MaxHARQRetx:      4,
		MaxAggrLevel:     8,
	}
	if err := s.CellCfg([]CellConfig{cell}); err != nil {
		panic(err)
	}
	return &TestFixture{Scheduler: s, nextPreamble: 5, nextTempCRNTI: 0x46}
}

// DefaultUEConfig returns a permissive UEConfig suitable for most tests:
// no fixed MCS, full MCS range, no SR configured.
func DefaultUEConfig() UEConfig {
	return UEConfig{
		MaxHARQRetx:  4,
		MaxMCSDL:     28,
		MaxMCSUL:     28,
		FixedMCSDL:   -1,
		FixedMCSUL:   -1,
		MaxAggrLevel: 8,
	}
}

// DefaultBearerConfig returns an unthrottled, both-direction bearer
// configuration for lcid 3 (a representative data radio bearer).
func DefaultBearerConfig() BearerConfig {
	return BearerConfig{
		Priority:  1,
		PBR:       lchan.PBRInfinity,
		BSD:       50,
		LCG:       0,
		Direction: lchan.DirBoth,
	}
}

// AttachUE drives a UE through DLRachInfo then UECfg/BearerUECfg with the
// default configs, returning its assigned temp C-RNTI. prachTTI is the TTI
// at which the simulated PRACH preamble arrives; the preamble index and
// temp C-RNTI are synthesized from an incrementing counter the way a test
// harness standing in for the PHY would.
func (f *TestFixture) AttachUE(prachTTI uint32) (uint16, error) {
	rnti := f.nextTempCRNTI
	f.nextTempCRNTI++
	preamble := f.nextPreamble
	f.nextPreamble++

	err := f.DLRachInfo(0, RACHEvent{
		PRACHTTI:    prachTTI,
		PreambleIdx: preamble,
		TempCRNTI:   rnti,
		TACmd:       0,
		Msg3Size:    56,
	})
	if err != nil {
		return 0, err
	}
	if err := f.UECfg(rnti, DefaultUEConfig()); err != nil {
		return 0, err
	}
	if err := f.BearerUECfg(rnti, 3, DefaultBearerConfig()); err != nil {
		return 0, err
	}
	return rnti, nil
}
