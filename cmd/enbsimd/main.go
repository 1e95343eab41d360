package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/go-enb/sched"
	"github.com/go-enb/sched/config"
	"github.com/go-enb/sched/internal/constants"
	"github.com/go-enb/sched/internal/logging"
	"github.com/go-enb/sched/internal/wire"
)

// enbsimd drives a Scheduler against a scripted PHY/RRC event sequence:
// periodic PRACH arrivals, CRC/ACK feedback for whatever was granted last
// TTI, and a dl_sched/ul_sched call every subframe. It exists to give the
// scheduler package a runnable harness outside of its test suite (§9 "a
// process that owns the scheduler instance").
func main() {
	app := &cli.App{
		Name:  "enbsimd",
		Usage: "run an eNodeB MAC scheduler against a simulated PHY/RRC event stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the cell/UE YAML configuration",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "ttis",
				Usage: "number of TTIs to simulate before exiting (0 runs forever)",
				Value: 0,
			},
			&cli.DurationFlag{
				Name:  "tti-interval",
				Usage: "wall-clock delay between simulated TTIs (0 runs as fast as possible)",
				Value: time.Millisecond,
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "address to serve Prometheus metrics on (empty disables the server)",
				Value: ":9090",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug-level logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logConfig := logging.DefaultConfig()
	if c.Bool("verbose") {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	s := sched.New(&sched.Options{Logger: logger})
	if err := s.CellCfg(cfg.CellConfigs()); err != nil {
		return fmt.Errorf("cell_cfg: %w", err)
	}

	if addr := c.String("metrics-addr"); addr != "" {
		prometheus.MustRegister(s.Metrics())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("serving metrics", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server exited", "error", err)
			}
		}()
	}

	sim := newSimulator(s, cfg, logger)
	sim.provision()

	interval := c.Duration("tti-interval")
	limit := c.Int("ttis")
	logger.Info("starting simulation", "ttis", limit, "interval", interval)

	for tti := uint32(0); limit == 0 || int(tti) < limit; tti++ {
		sim.step(tti)
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	return nil
}

// simulator replays a minimal PRACH -> RAR -> Msg3 -> data traffic
// pattern against a live Scheduler, driving exactly the FAPI surface a
// real PHY/RRC stack would call every TTI (§6).
type simulator struct {
	s   *sched.Scheduler
	cfg *config.Config
	log *logging.Logger

	rng *rand.Rand

	nextPRACHAt uint32
	prachPeriod uint32

	// nextPreamble/nextTempCRNTI stand in for the PHY's own preamble
	// detection and temp C-RNTI assignment, since this simulator has no
	// real PRACH receiver to draw them from.
	nextPreamble  uint32
	nextTempCRNTI uint16

	// pending holds feedback callbacks keyed by the future TTI at which a
	// PHY would actually report them (ACK/NACK and CRC indications both
	// arrive a fixed number of TTIs after the grant that provoked them).
	pending map[uint32][]func()
}

func newSimulator(s *sched.Scheduler, cfg *config.Config, log *logging.Logger) *simulator {
	return &simulator{
		s:             s,
		cfg:           cfg,
		log:           log,
		rng:           rand.New(rand.NewSource(1)),
		prachPeriod:   20,
		nextTempCRNTI: 0x46,
		pending:       map[uint32][]func(){},
	}
}

func (sim *simulator) schedule(at uint32, fn func()) {
	at = at % constants.NumTTI
	sim.pending[at] = append(sim.pending[at], fn)
}

func (sim *simulator) runPending(now uint32) {
	for _, fn := range sim.pending[now] {
		fn()
	}
	delete(sim.pending, now)
}

// provision pre-configures every UE named in the configuration, the way
// an RRC layer would replay a set of already-attached UEs at startup.
func (sim *simulator) provision() {
	for _, ueProv := range sim.cfg.UEConfigs() {
		if err := sim.s.UECfg(ueProv.RNTI, ueProv.Config); err != nil {
			sim.log.Warn("skipping pre-provisioned ue: not created via rach", "rnti", ueProv.RNTI, "error", err)
			continue
		}
		for _, b := range ueProv.Bearers {
			if err := sim.s.BearerUECfg(ueProv.RNTI, b.LCID, b.Config); err != nil {
				sim.log.Warn("bearer_ue_cfg failed", "rnti", ueProv.RNTI, "lcid", b.LCID, "error", err)
			}
		}
	}
}

// step runs one TTI of DL/UL scheduling on every configured carrier, with
// occasional PRACH arrivals and feedback for whatever was granted so the
// HARQ state machines actually progress.
func (sim *simulator) step(now uint32) {
	sim.runPending(now)

	if now >= sim.nextPRACHAt {
		sim.nextPRACHAt = now + sim.prachPeriod
		preamble := sim.nextPreamble % 64
		sim.nextPreamble++
		rnti := sim.nextTempCRNTI
		sim.nextTempCRNTI++
		err := sim.s.DLRachInfo(0, sched.RACHEvent{
			PRACHTTI:    now,
			PreambleIdx: preamble,
			TempCRNTI:   rnti,
			TACmd:       0,
			Msg3Size:    56,
		})
		if err != nil {
			sim.log.Debug("rach rejected", "error", err)
		} else {
			sim.log.Info("rach accepted", "rnti", fmt.Sprintf("0x%x", rnti), "tti", now)
		}
	}

	for cc := 0; cc < len(sim.cfg.Cells); cc++ {
		dl, err := sim.s.DLSched(now, cc)
		if err != nil {
			sim.log.Error("dl_sched failed", "cc", cc, "error", err)
			continue
		}
		sim.feedbackDL(now, cc, dl)

		ul, err := sim.s.ULSched(now, cc)
		if err != nil {
			sim.log.Error("ul_sched failed", "cc", cc, "error", err)
			continue
		}
		sim.feedbackUL(now, cc, ul)
	}
}

// feedbackDL schedules a PHY ACK for every DL transport block allocated
// this TTI (at the fixed HARQ round-trip delay), and for any RAR grant
// issued this TTI, a CRC-ok indication for the Msg3 it implies.
func (sim *simulator) feedbackDL(now uint32, cc int, res wire.SFDLResult) {
	ackAt := now + constants.FDDHarqDelayDL
	for _, d := range res.Data {
		rnti := d.Grant.RNTI
		sim.schedule(ackAt, func() {
			if err := sim.s.DLAckInfo(ackAt, rnti, cc, 0, true); err != nil {
				sim.log.Debug("dl_ack_info failed", "rnti", rnti, "error", err)
			}
		})
	}

	for _, rar := range res.RAR {
		for _, grant := range rar.Grants {
			rnti := grant.TempCRNTI
			msg3TTI := now + constants.Msg3DelayTTIs
			sim.schedule(msg3TTI, func() {
				if err := sim.s.ULCRCInfo(msg3TTI, rnti, cc, true); err != nil {
					sim.log.Debug("msg3 ul_crc_info failed", "rnti", rnti, "error", err)
				}
			})
		}
	}
}

// feedbackUL reports an immediate CRC-ok for every PUSCH grant issued
// this TTI, the way a PHY would for a UE that never corrupts a transport
// block.
func (sim *simulator) feedbackUL(now uint32, cc int, res wire.SFULResult) {
	for _, grant := range res.PUSCH {
		if err := sim.s.ULCRCInfo(now, grant.RNTI, cc, true); err != nil {
			sim.log.Debug("ul_crc_info failed", "rnti", grant.RNTI, "error", err)
		}
	}
}
