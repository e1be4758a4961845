package main

import (
	"github.com/sirupsen/logrus"

	"github.com/justpow98/fleetwatch/cmd"
)

// init configures the initial logging level, ensuring basic operational
// logs are visible until flags like --debug or --log-level take over.
func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	cmd.Execute()
}
