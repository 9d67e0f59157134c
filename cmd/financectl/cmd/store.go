package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"marketplace-finance-service/cmd/financectl/config"
	"marketplace-finance-service/internal/reporter"
	"marketplace-finance-service/internal/store"
)

// openStore connects to the configured MySQL store, or hands back an
// in-memory store for dry runs where nothing should persist.
func openStore(dryRun bool) (store.Store, error) {
	if dryRun {
		return store.NewMemoryStore(), nil
	}
	db, err := store.Open(store.ConfigFromEnv())
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db)
}

// newReporter builds a report generator for the --output flag value
func newReporter() (*reporter.ReportGenerator, error) {
	return reporter.NewReportGenerator(config.CreateReportConfig(viper.GetString("output")))
}

// resultWriter returns where reports go; stdout unless --output-file is set
func resultWriter(outputFile string) (io.Writer, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	f.Close()
	return nil
}
