package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag keys, also readable from FDIRSIM_* environment variables
// (FDIRSIM_SENSORS, FDIRSIM_LOG_LEVEL, ...).
const (
	keySensors  = "sensors"
	keyStorage  = "storage"
	keyLogLevel = "log-level"
	keyLogFile  = "log-file"
	keyNoCSV    = "no-csv"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "sensor-fdir",
	Short:         "Redundant IMU/GNSS simulator with fusion and FDIR health monitoring",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(keySensors, "config/sensors.yaml", "path to sensors.yaml (empty for built-in defaults)")
	pf.String(keyStorage, "config/storage.yaml", "path to storage.yaml (empty for built-in defaults)")
	pf.String(keyLogLevel, "info", "log level (trace, debug, info, warn, error)")
	pf.String(keyLogFile, "", "optional log file path (stdout is always included)")
	pf.Bool(keyNoCSV, false, "do not write fused output CSVs")

	viper.SetEnvPrefix("FDIRSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, k := range []string{keySensors, keyStorage, keyLogLevel, keyLogFile, keyNoCSV} {
		_ = viper.BindPFlag(k, pf.Lookup(k))
	}

	rootCmd.AddCommand(runCmd, scenarioCmd, interactiveCmd)
}
