// Package config loads and validates the static cell/UE/bearer
// configuration a scheduler instance is started with (component M):
// YAML on disk in, validated `sched.CellConfig` values out.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-enb/sched"
	"github.com/go-enb/sched/internal/bcch"
	"github.com/go-enb/sched/internal/lchan"
)

// SIB is the YAML shape of one configured SIB.
type SIB struct {
	Index      int    `yaml:"index"`
	LenBytes   int    `yaml:"len_bytes"`
	SIWindowMS uint32 `yaml:"si_window_ms"`
	PeriodRF   uint32 `yaml:"period_rf"`
}

// Cell is the YAML shape of one component carrier.
type Cell struct {
	NofPRB           int    `yaml:"nof_prb"`
	SIBs             []SIB  `yaml:"sibs"`
	SIWindowMS       uint32 `yaml:"si_window_ms"`
	PRACHConfig      uint32 `yaml:"prach_config_index"`
	PRACHFreqOffset  uint32 `yaml:"prach_freq_offset"`
	PRACHRARWindowMS uint32 `yaml:"prach_rar_window_ms"`
	MaxHARQMsg3Tx    uint32 `yaml:"max_harq_msg3_tx"`
	NRBPUCCH         int    `yaml:"nrb_pucch"`
	MaxHARQRetx      uint32 `yaml:"max_harq_retx"`
	MaxAggrLevel     uint32 `yaml:"max_aggr_level"`
}

// Bearer is the YAML shape of one logical-channel configuration applied
// to a UE at startup (scripted/simulation use; live bearers normally
// arrive via BearerUECfg at runtime).
type Bearer struct {
	LCID      int    `yaml:"lcid"`
	Priority  int    `yaml:"priority"`
	PBR       int    `yaml:"pbr"` // bytes/s; -1 for unlimited
	BSD       int    `yaml:"bsd_ms"`
	LCG       int    `yaml:"lcg"`
	Direction string `yaml:"direction"` // "ul", "dl", "both", "idle"
}

// UE is the YAML shape of one pre-provisioned UE (scripted/simulation
// use).
type UE struct {
	RNTI         uint16   `yaml:"rnti"`
	MaxHARQRetx  uint32   `yaml:"max_harq_retx"`
	MaxMCSDL     uint32   `yaml:"max_mcs_dl"`
	MaxMCSUL     uint32   `yaml:"max_mcs_ul"`
	FixedMCSDL   int      `yaml:"fixed_mcs_dl"`
	FixedMCSUL   int      `yaml:"fixed_mcs_ul"`
	MaxAggrLevel uint32   `yaml:"max_aggr_level"`
	Bearers      []Bearer `yaml:"bearers"`
}

// Config is the full static configuration for one cell and its
// pre-provisioned UEs.
type Config struct {
	Cells []Cell `yaml:"cells"`
	UEs   []UE   `yaml:"ues"`
}

// Load reads and parses a YAML configuration file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// validPRBCounts are the LTE-legal cell bandwidths in resource blocks.
var validPRBCounts = map[int]bool{6: true, 15: true, 25: true, 50: true, 75: true, 100: true}

// Validate checks the configuration-inconsistency rules a cell/UE
// configuration must satisfy before a scheduler can be started with it
// (§7 "Configuration inconsistencies").
func (c *Config) Validate() error {
	if len(c.Cells) == 0 {
		return fmt.Errorf("config: at least one cell is required")
	}
	for i, cell := range c.Cells {
		if !validPRBCounts[cell.NofPRB] {
			return fmt.Errorf("config: cell %d: nof_prb %d is not a legal LTE bandwidth", i, cell.NofPRB)
		}
		if i == 0 && len(cell.SIBs) == 0 {
			return fmt.Errorf("config: cell %d (pcell): at least SIB1 must be configured", i)
		}
		seenSIB := map[int]bool{}
		for _, sib := range cell.SIBs {
			if seenSIB[sib.Index] {
				return fmt.Errorf("config: cell %d: duplicate sib index %d", i, sib.Index)
			}
			seenSIB[sib.Index] = true
			if sib.LenBytes <= 0 {
				return fmt.Errorf("config: cell %d: sib %d has non-positive len_bytes", i, sib.Index)
			}
			if sib.Index > 0 && sib.SIWindowMS == 0 {
				return fmt.Errorf("config: cell %d: sib %d missing si_window_ms", i, sib.Index)
			}
		}
		if i == 0 && !seenSIB[0] {
			return fmt.Errorf("config: cell %d (pcell): at least SIB1 must be configured", i)
		}
		if cell.PRACHRARWindowMS == 0 {
			return fmt.Errorf("config: cell %d: prach_rar_window_ms must be positive", i)
		}
	}

	seenRNTI := map[uint16]bool{}
	for i, ue := range c.UEs {
		if ue.RNTI == 0 {
			return fmt.Errorf("config: ue %d: rnti 0 is reserved", i)
		}
		if seenRNTI[ue.RNTI] {
			return fmt.Errorf("config: ue %d: duplicate rnti 0x%x", i, ue.RNTI)
		}
		seenRNTI[ue.RNTI] = true
		if ue.MaxMCSDL > 28 || ue.MaxMCSUL > 28 {
			return fmt.Errorf("config: ue 0x%x: mcs bound exceeds 28", ue.RNTI)
		}
		seenLCID := map[int]bool{}
		for _, b := range ue.Bearers {
			if b.LCID < 0 || b.LCID >= 11 {
				return fmt.Errorf("config: ue 0x%x: lcid %d out of range", ue.RNTI, b.LCID)
			}
			if seenLCID[b.LCID] {
				return fmt.Errorf("config: ue 0x%x: duplicate lcid %d", ue.RNTI, b.LCID)
			}
			seenLCID[b.LCID] = true
			if b.LCG < 0 || b.LCG >= 4 {
				return fmt.Errorf("config: ue 0x%x: lcid %d has lcg %d out of range", ue.RNTI, b.LCID, b.LCG)
			}
			if _, err := parseDirection(b.Direction); err != nil {
				return fmt.Errorf("config: ue 0x%x: lcid %d: %w", ue.RNTI, b.LCID, err)
			}
		}
	}
	return nil
}

func parseDirection(s string) (lchan.Direction, error) {
	switch s {
	case "", "idle":
		return lchan.DirIdle, nil
	case "ul":
		return lchan.DirUL, nil
	case "dl":
		return lchan.DirDL, nil
	case "both":
		return lchan.DirBoth, nil
	default:
		return lchan.DirIdle, fmt.Errorf("unknown direction %q", s)
	}
}

// CellConfigs converts the parsed cell list into the sched package's
// configuration type, in carrier order (index 0 is the PCell).
func (c *Config) CellConfigs() []sched.CellConfig {
	out := make([]sched.CellConfig, len(c.Cells))
	for i, cell := range c.Cells {
		out[i] = sched.CellConfig{
			NofPRB:           cell.NofPRB,
			SIBs:             toBCCHSIBs(cell.SIBs),
			SIWindowMS:       cell.SIWindowMS,
			PRACHConfig:      cell.PRACHConfig,
			PRACHFreqOffset:  cell.PRACHFreqOffset,
			PRACHRARWindowMS: cell.PRACHRARWindowMS,
			MaxHARQMsg3Tx:    cell.MaxHARQMsg3Tx,
			NRBPUCCH:         cell.NRBPUCCH,
			MaxHARQRetx:      cell.MaxHARQRetx,
			MaxAggrLevel:     cell.MaxAggrLevel,
		}
	}
	return out
}

// UEConfigs converts the parsed UE list into (rnti, sched.UEConfig,
// bearer configs) triples for scripted provisioning.
func (c *Config) UEConfigs() []UEProvision {
	out := make([]UEProvision, len(c.UEs))
	for i, ue := range c.UEs {
		bearers := make([]BearerProvision, len(ue.Bearers))
		for j, b := range ue.Bearers {
			dir, _ := parseDirection(b.Direction)
			bearers[j] = BearerProvision{
				LCID: b.LCID,
				Config: sched.BearerConfig{
					Priority:  b.Priority,
					PBR:       b.PBR,
					BSD:       b.BSD,
					LCG:       b.LCG,
					Direction: dir,
				},
			}
		}
		out[i] = UEProvision{
			RNTI: ue.RNTI,
			Config: sched.UEConfig{
				MaxHARQRetx:  ue.MaxHARQRetx,
				MaxMCSDL:     ue.MaxMCSDL,
				MaxMCSUL:     ue.MaxMCSUL,
				FixedMCSDL:   ue.FixedMCSDL,
				FixedMCSUL:   ue.FixedMCSUL,
				MaxAggrLevel: ue.MaxAggrLevel,
			},
			Bearers: bearers,
		}
	}
	return out
}

// UEProvision bundles one UE's startup configuration and bearer list.
type UEProvision struct {
	RNTI    uint16
	Config  sched.UEConfig
	Bearers []BearerProvision
}

// BearerProvision bundles one bearer's LCID and configuration.
type BearerProvision struct {
	LCID   int
	Config sched.BearerConfig
}

func toBCCHSIBs(sibs []SIB) []bcch.SIBConfig {
	out := make([]bcch.SIBConfig, len(sibs))
	for i, s := range sibs {
		out[i] = bcch.SIBConfig{Index: s.Index, LenBytes: s.LenBytes, SIWindowMS: s.SIWindowMS, PeriodRF: s.PeriodRF}
	}
	return out
}
