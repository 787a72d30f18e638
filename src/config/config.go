// Package config loads the engine's runtime configuration from environment
// variables, following the same load-.env-then-os.Environ idiom as the rest
// of the pack.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/uebber/ibkr-german-tax-declaration-engine/src/money"
)

// EngineConfig is the config struct the core consumes, per spec §6.
type EngineConfig struct {
	TaxYear                 int
	InternalPrecision       int32
	RoundingMode            money.RoundingMode
	OutputPrecisionAmount   int32
	OutputPrecisionPerShare int32
	MaxFXFallbackDays       int
	EOYQuantityTolerance    decimal.Decimal

	// ApplyConceptualDerivativeLossCapping gates the -20,000 EUR cap on the
	// reported conceptual_net_derivatives_capped balance (spec §12,
	// original_source's APPLY_CONCEPTUAL_DERIVATIVE_LOSS_CAPPING).
	ApplyConceptualDerivativeLossCapping bool

	LogLevel          string
	AuditDatabasePath string
	FixturePath       string
}

// Load reads configuration from the OS environment, best-effort loading a
// .env file first exactly like the teacher's LoadConfig. Unlike the teacher
// (a server entrypoint free to os.Exit on bad config), Load is a library
// function and returns an error instead of calling log.Fatalf.
func Load() (*EngineConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found or error loading it, relying on OS environment and defaults:", err)
	}

	taxYear, err := getEnvAsInt("TAX_YEAR", 2023)
	if err != nil {
		return nil, err
	}

	internalPrecision, err := getEnvAsInt("INTERNAL_PRECISION", money.InternalPrecision)
	if err != nil {
		return nil, err
	}
	if internalPrecision < 28 {
		return nil, fmt.Errorf("config: INTERNAL_PRECISION must be >= 28, got %d", internalPrecision)
	}

	roundingModeStr := getEnv("ROUNDING_MODE", "ROUND_HALF_UP")
	var roundingMode money.RoundingMode
	switch roundingModeStr {
	case "ROUND_HALF_UP":
		roundingMode = money.RoundHalfUp
	case "ROUND_HALF_EVEN":
		roundingMode = money.RoundHalfEven
	default:
		return nil, fmt.Errorf("config: unknown ROUNDING_MODE %q", roundingModeStr)
	}

	maxFallbackDays, err := getEnvAsInt("MAX_FX_FALLBACK_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if maxFallbackDays < 0 {
		return nil, fmt.Errorf("config: MAX_FX_FALLBACK_DAYS must be >= 0, got %d", maxFallbackDays)
	}

	tolerance, err := money.FromString(getEnv("EOY_QUANTITY_TOLERANCE", "0.000001"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid EOY_QUANTITY_TOLERANCE: %w", err)
	}

	applyDerivativeLossCapping, err := getEnvAsBool("APPLY_CONCEPTUAL_DERIVATIVE_LOSS_CAPPING", true)
	if err != nil {
		return nil, err
	}

	cfg := &EngineConfig{
		TaxYear:                              taxYear,
		InternalPrecision:                    int32(internalPrecision),
		RoundingMode:                         roundingMode,
		OutputPrecisionAmount:                money.AmountPlaces,
		OutputPrecisionPerShare:               money.SharePlaces,
		MaxFXFallbackDays:                    maxFallbackDays,
		EOYQuantityTolerance:                 tolerance,
		ApplyConceptualDerivativeLossCapping: applyDerivativeLossCapping,
		LogLevel:                             getEnv("LOG_LEVEL", "info"),
		AuditDatabasePath:                    getEnv("AUDIT_DATABASE_PATH", "./taxengine_audit.db"),
		FixturePath:                          getEnv("FIXTURE_PATH", ""),
	}

	log.Printf("config: loaded tax_year=%d internal_precision=%d rounding_mode=%s max_fx_fallback_days=%d",
		cfg.TaxYear, cfg.InternalPrecision, roundingModeStr, cfg.MaxFXFallbackDays)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer value for %s (%q): %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("config: invalid boolean value for %s (%q): %w", key, valueStr, err)
	}
	return value, nil
}
