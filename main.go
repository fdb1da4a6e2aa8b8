package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/joho/godotenv"

	"github.com/kelmah-platform/kelmah-payout-service/cmd"
)

// Version is the official version of this application.
const Version = "1.3.0"

// GitCommit is populated at build time by
// go build -ldflags "-X main.GitCommit=$GIT_COMMIT"
var GitCommit string

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}

	cmd.Execute(Version, GitCommit)
}
