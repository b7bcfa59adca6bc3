package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"sensor-fdir/controller"
	"sensor-fdir/services/alerts"
	"sensor-fdir/services/telemetry"
	"sensor-fdir/utils"
)

// pipeline is everything one CLI invocation builds and must tear down.
//
//	sensor goroutines ──► ring buffers ──► FusionController ──► Tee ──► rate.csv / position.csv
//	        │                                     │                 └──► MQTT (optional)
//	        └──────────── HealthController ◄──────┘
//	                           │
//	                     alerts.Fanout ──► log, counter, MQTT (optional)
type pipeline struct {
	logSession *utils.LogSession
	log        *logrus.Entry
	sensorsCfg *utils.SensorsConfig

	alertLog  *alerts.Counter
	recorder  *controller.RecordingController
	publisher *telemetry.Publisher
	sim       *controller.SimulationController
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	logSession, err := utils.InitLogger(viper.GetString(keyLogLevel), viper.GetString(keyLogFile))
	if err != nil {
		return nil, err
	}
	log := logrus.NewEntry(logSession.Logger)
	p := &pipeline{logSession: logSession, log: log, alertLog: alerts.NewCounter()}

	log.WithFields(logrus.Fields{
		"gomaxprocs": runtime.GOMAXPROCS(0),
		"pid":        os.Getpid(),
	}).Info("sensor-fdir starting")

	sensorsCfg, err := utils.LoadSensorsConfig(viper.GetString(keySensors))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("load sensors config: %w", err)
	}
	p.sensorsCfg = sensorsCfg

	alertSink := alerts.Fanout{alerts.NewLogSink(log), p.alertLog}
	var fusedSink controller.Tee

	if !viper.GetBool(keyNoCSV) {
		storageCfg, err := utils.LoadStorageConfig(viper.GetString(keyStorage))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("load storage config: %w", err)
		}
		if !filepath.IsAbs(storageCfg.Storage.BaseDir) {
			if abs, err := filepath.Abs(storageCfg.Storage.BaseDir); err == nil {
				storageCfg.Storage.BaseDir = abs
			}
		}
		p.recorder, err = controller.NewRecordingController(storageCfg, nil, log)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("init recording controller: %w", err)
		}
		p.recorder.Start()
		fusedSink = append(fusedSink, p.recorder)
	}

	if sensorsCfg.Telemetry.Enabled {
		p.publisher, err = telemetry.Dial(ctx, sensorsCfg.Telemetry, log)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		alertSink = append(alertSink, p.publisher)
		fusedSink = append(fusedSink, p.publisher)
	}

	sensors := controller.NewSensorsController(sensorsCfg, alertSink, log, nil)
	fusion := controller.NewFusionController(sensors.Rate, sensors.Position,
		sensorsCfg.Fusion.FrequencyHz, fusedSink, alertSink, controller.FusionWithLogger(log))
	health := controller.NewHealthController(fusion, sensorsCfg.Monitor.FrequencyHz, alertSink,
		controller.HealthWithLogger(log))

	statsEvery := time.Duration(sensorsCfg.Simulation.StatsIntervalSeconds) * time.Second
	if statsEvery <= 0 {
		statsEvery = 5 * time.Second
	}
	p.sim = controller.NewSimulationController(sensors, fusion, health, alertSink,
		controller.SimulationWithLogger(log),
		controller.SimulationWithDegradedHz(sensorsCfg.Faults.DegradedPositionHz),
		controller.SimulationWithStatsInterval(statsEvery),
	)

	log.WithFields(logrus.Fields{
		"rate_sensors":     len(sensors.Rate),
		"position_sensors": len(sensors.Position),
		"fusion_hz":        sensorsCfg.Fusion.FrequencyHz,
		"monitor_hz":       sensorsCfg.Monitor.FrequencyHz,
	}).Info("pipeline assembled")
	return p, nil
}

// runScenario runs a canned scenario. A zero d picks the configured length:
// simulation.duration_seconds for nominal runs, faults.duration_seconds for
// fault runs.
func (p *pipeline) runScenario(ctx context.Context, scenario controller.Scenario, d time.Duration) error {
	if d <= 0 {
		secs := p.sensorsCfg.Faults.DurationSeconds
		if scenario == controller.ScenarioNominal {
			secs = p.sensorsCfg.Simulation.DurationSeconds
		}
		d = time.Duration(secs) * time.Second
	}
	p.log.WithFields(logrus.Fields{"scenario": scenario, "duration": d}).Info("running scenario")
	return p.sim.RunScenario(ctx, scenario, d)
}

// Close stops whatever is still running, flushes output and prints a summary.
func (p *pipeline) Close() {
	if p.sim != nil && p.sim.Running() {
		p.sim.Stop()
	}
	if p.recorder != nil {
		if err := p.recorder.Stop(); err != nil {
			p.log.WithError(err).Error("close recording")
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			p.log.WithError(err).Warn("close telemetry")
		}
	}

	p.log.WithFields(logrus.Fields{
		"info":    p.alertLog.Count(alerts.Info),
		"warning": p.alertLog.Count(alerts.Warning),
		"error":   p.alertLog.Count(alerts.Error),
	}).Info("alert summary")

	if p.recorder != nil {
		fmt.Println("\n✓ sensor-fdir finished. Fused output at:", p.recorder.SessionDir())
	}
	if err := p.logSession.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
}
