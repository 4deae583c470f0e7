package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ctlConfig struct {
	dbURL           string
	natsURL         string
	natsToken       string
	mongoURI        string
	votingThreshold int
	timeout         time.Duration
}

func (c *ctlConfig) validate() error {
	if c.votingThreshold < 1 {
		return fmt.Errorf("invalid voting threshold (must be positive): %d", c.votingThreshold)
	}
	if c.timeout <= 0 {
		return fmt.Errorf("invalid timeout (must be positive): %s", c.timeout)
	}
	return nil
}

// newRootCmd binds every flag to the environment variable of the same name as the services
// read (--postgres-url / POSTGRES_URL); a flag given on the command line wins.
func newRootCmd(cfg *ctlConfig) *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "assassinctl",
		Short: "Administer the assassin game from the command line.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.dbURL, "postgres-url", "", "game database (env: POSTGRES_URL)")
	fs.StringVar(&cfg.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server (env: NATS_URL)")
	fs.StringVar(&cfg.natsToken, "nats-token", "", "NATS auth token (env: NATS_TOKEN)")
	fs.StringVar(&cfg.mongoURI, "mongodb-uri", "", "audit log database, empty logs locally (env: MONGODB_URI)")
	fs.IntVar(&cfg.votingThreshold, "voting-threshold", 3, "threshold seeded into a new database (env: VOTING_THRESHOLD)")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "time allowed for one command (env: CTL_TIMEOUT)")

	envNames := map[string]string{"timeout": "CTL_TIMEOUT"}
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if name, ok := envNames[f.Name]; ok {
			_ = v.BindEnv(f.Name, name)
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	addCommands(cmd, cfg)
	return cmd
}
