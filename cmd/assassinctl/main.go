package main

import (
	"os"

	"github.com/spf13/cobra"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassin-services/configs"
)

const SERVICE_NAME = "ctl"

func init() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.ErrorLevel)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := &ctlConfig{}
	cobra.CheckErr(newRootCmd(cfg).Execute())
}
