package cmd

import (
	"fmt"
	"os"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/config"
	"github.com/bimmerbailey/convolog/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "convolog",
	Short: "Stream and normalize conversational agent logs",
	Long: `Convolog reads JSON and JSONL logs written by conversational agents and
turns every record it understands into a canonical event: a user, assistant
or system message, a tool call, a tool result, or a meta event.

Input is framed and decoded incrementally, so large and partially malformed
logs are shown while they load. Malformed lines are counted and sampled,
never fatal. Sensitive text is masked when displayed.

Examples:
  convolog view session.jsonl
  convolog view --show-tools --format jsonl https://example.com/run.jsonl.gz
  convolog stats s3://bucket/agents/run.jsonl
  convolog ls --sort date
  convolog serve --addr :8080 --data-dir ./data/logs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Pretty:  cfg.LogPretty,
			Service: "convolog",
			Out:     cmd.ErrOrStderr(),
		})
		if cfg.Verbose {
			if used := viper.ConfigFileUsed(); used != "" {
				zlog.Info().Str("file", used).Msg("using config file")
			}
		}
		return nil
	},
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.convolog.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, jsonl, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory served and listed as the log root")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".convolog")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CONVOLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// loadConfig decodes the global viper state. Defaults are re-applied so
// commands called directly from tests see a complete configuration.
func loadConfig() (config.Config, error) {
	config.SetDefaults(viper.GetViper())
	return config.Load(viper.GetViper())
}
