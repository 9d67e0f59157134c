package main

import (
	"os"

	"github.com/joho/godotenv"

	"marketplace-finance-service/cmd/financectl/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// A .env next to the binary is the common dev setup; absence is fine.
	godotenv.Load()

	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.NewCLIErrorHandler().HandleError(err))
	}
}
