package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	OwnerPassword   string
	CatalogCapacity int
	LedgerCapacity  int
	ExportFile      string
}

func Load() Config {
	catalogCap, err := strconv.Atoi(getEnv("BOTICA_CATALOG_CAPACITY", "200"))
	if err != nil || catalogCap < 1 {
		catalogCap = 200
	}
	ledgerCap, err := strconv.Atoi(getEnv("BOTICA_LEDGER_CAPACITY", "5000"))
	if err != nil || ledgerCap < 1 {
		ledgerCap = 5000
	}

	return Config{
		// No default: an unset owner password forces a first-run prompt.
		OwnerPassword:   strings.TrimSpace(os.Getenv("BOTICA_OWNER_PASSWORD")),
		CatalogCapacity: catalogCap,
		LedgerCapacity:  ledgerCap,
		ExportFile:      getEnv("BOTICA_EXPORT_FILE", "medicamentos.csv"),
	}
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
