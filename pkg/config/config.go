package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Dataset     DatasetConfig
	Model       ModelConfig
	Split       SplitConfig
	Policy      PolicyConfig
	Scoring     ScoringConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	OTEL        OTELConfig
	Logging     LoggingConfig
}

// DatasetConfig holds the location and naming of the historical tables
type DatasetConfig struct {
	BasePath          string
	AppointmentsTable string
	FacilitiesTable   string
	ProceduresTable   string
	DiagnosesTable    string
	ProfilesTable     string

	// Raw status strings mapped onto appointment outcomes.
	AttendedStatuses  []string
	NoShowStatuses    []string
	CancelledStatuses []string
	ScheduledStatuses []string
}

// ModelConfig holds hyperparameters for both estimators
type ModelConfig struct {
	Trees                int
	LearningRate         float64
	MaxDepth             int
	MinSamplesLeaf       int
	L2                   float64
	Bins                 int
	EarlyStoppingRounds  int
	LogisticIterations   int
	LogisticLearningRate float64
	LogisticL2           float64
	ArtifactPath         string
	ReportPath           string

	// Quality gates a production model must pass before it is published.
	MinROCAUC      float64
	MaxLogLoss     float64
	BaselineMargin float64
}

// SplitConfig holds train/test split settings
type SplitConfig struct {
	TestRatio       float64
	ValidationRatio float64
	Seed            int64
}

// PolicyConfig holds intervention policy thresholds. Values may be overridden
// by the YAML file named in POLICY_FILE.
type PolicyConfig struct {
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`

	// Overbooking: rate > UpperRate -> UpperCeiling; rate >= LowerRate -> MiddleCeiling; else LowerCeiling.
	OverbookingUpperRate     float64 `yaml:"overbooking_upper_rate"`
	OverbookingLowerRate     float64 `yaml:"overbooking_lower_rate"`
	OverbookingUpperCeiling  float64 `yaml:"overbooking_upper_ceiling"`
	OverbookingMiddleCeiling float64 `yaml:"overbooking_middle_ceiling"`
	OverbookingLowerCeiling  float64 `yaml:"overbooking_lower_ceiling"`

	MinimumWage           float64  `yaml:"minimum_wage"`
	SubsidyIncomeMultiple float64  `yaml:"subsidy_income_multiple"`
	SubsidyMinDistanceKm  float64  `yaml:"subsidy_min_distance_km"`
	PrioritizedRiskFlags  []string `yaml:"prioritized_risk_flags"`
}

// Appointment sources
const (
	SourceDataset  = "dataset"
	SourcePostgres = "postgres"
)

// ScoringConfig holds batch scoring settings
type ScoringConfig struct {
	Workers    int
	CacheTTL   time.Duration
	TopDetails int
	Source     string
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string
	// Format is "console" or "json". Empty picks console in development.
	Format string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// DefaultPolicy returns the standard intervention policy
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		HighThreshold:            0.6,
		MediumThreshold:          0.3,
		OverbookingUpperRate:     0.25,
		OverbookingLowerRate:     0.15,
		OverbookingUpperCeiling:  0.15,
		OverbookingMiddleCeiling: 0.10,
		OverbookingLowerCeiling:  0.05,
		MinimumWage:              1412,
		SubsidyIncomeMultiple:    2,
		SubsidyMinDistanceKm:     10,
		PrioritizedRiskFlags:     []string{"VERMELHO", "AMARELO"},
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	policy := DefaultPolicy()
	policy.HighThreshold = getEnvAsFloat("POLICY_HIGH_THRESHOLD", policy.HighThreshold)
	policy.MediumThreshold = getEnvAsFloat("POLICY_MEDIUM_THRESHOLD", policy.MediumThreshold)
	policy.MinimumWage = getEnvAsFloat("POLICY_MINIMUM_WAGE", policy.MinimumWage)
	policy.SubsidyIncomeMultiple = getEnvAsFloat("POLICY_SUBSIDY_INCOME_MULTIPLE", policy.SubsidyIncomeMultiple)
	policy.SubsidyMinDistanceKm = getEnvAsFloat("POLICY_SUBSIDY_MIN_DISTANCE_KM", policy.SubsidyMinDistanceKm)
	policy.PrioritizedRiskFlags = getEnvAsList("POLICY_PRIORITIZED_RISK_FLAGS", policy.PrioritizedRiskFlags)

	if path := os.Getenv("POLICY_FILE"); path != "" {
		if err := loadPolicyFile(path, &policy); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		Dataset: DatasetConfig{
			BasePath:          getEnv("DATASET_PATH", "./data"),
			AppointmentsTable: getEnv("DATASET_APPOINTMENTS_TABLE", "marcacao"),
			FacilitiesTable:   getEnv("DATASET_FACILITIES_TABLE", "unidade_historico"),
			ProceduresTable:   getEnv("DATASET_PROCEDURES_TABLE", "procedimento"),
			DiagnosesTable:    getEnv("DATASET_DIAGNOSES_TABLE", "cids"),
			ProfilesTable:     getEnv("DATASET_PROFILES_TABLE", "paciente_perfil"),
			AttendedStatuses:  getEnvAsList("DATASET_ATTENDED_STATUSES", []string{"AGENDAMENTO / CONFIRMADO / EXECUTANTE"}),
			NoShowStatuses:    getEnvAsList("DATASET_NO_SHOW_STATUSES", []string{"AGENDAMENTO / FALTA / EXECUTANTE"}),
			CancelledStatuses: getEnvAsList("DATASET_CANCELLED_STATUSES", []string{"AGENDAMENTO / CANCELADO / EXECUTANTE", "AGENDAMENTO / CANCELADO / SOLICITANTE"}),
			ScheduledStatuses: getEnvAsList("DATASET_SCHEDULED_STATUSES", []string{"AGENDAMENTO / PENDENTE / EXECUTANTE"}),
		},
		Model: ModelConfig{
			Trees:                getEnvAsInt("MODEL_TREES", 500),
			LearningRate:         getEnvAsFloat("MODEL_LEARNING_RATE", 0.05),
			MaxDepth:             getEnvAsInt("MODEL_MAX_DEPTH", 4),
			MinSamplesLeaf:       getEnvAsInt("MODEL_MIN_SAMPLES_LEAF", 20),
			L2:                   getEnvAsFloat("MODEL_L2", 1.0),
			Bins:                 getEnvAsInt("MODEL_BINS", 32),
			EarlyStoppingRounds:  getEnvAsInt("MODEL_EARLY_STOPPING_ROUNDS", 10),
			LogisticIterations:   getEnvAsInt("MODEL_LOGISTIC_ITERATIONS", 300),
			LogisticLearningRate: getEnvAsFloat("MODEL_LOGISTIC_LEARNING_RATE", 0.1),
			LogisticL2:           getEnvAsFloat("MODEL_LOGISTIC_L2", 1.0),
			ArtifactPath:         getEnv("MODEL_ARTIFACT_PATH", "./artifacts/noshow_model.json"),
			ReportPath:           getEnv("MODEL_REPORT_PATH", "./artifacts/evaluation_report.json"),
			MinROCAUC:            getEnvAsFloat("MODEL_MIN_ROC_AUC", 0.55),
			MaxLogLoss:           getEnvAsFloat("MODEL_MAX_LOG_LOSS", 0.69),
			BaselineMargin:       getEnvAsFloat("MODEL_BASELINE_MARGIN", 0.02),
		},
		Split: SplitConfig{
			TestRatio:       getEnvAsFloat("SPLIT_TEST_RATIO", 0.2),
			ValidationRatio: getEnvAsFloat("SPLIT_VALIDATION_RATIO", 0.1),
			Seed:            int64(getEnvAsInt("SPLIT_SEED", 42)),
		},
		Policy: policy,
		Scoring: ScoringConfig{
			Workers:    getEnvAsInt("SCORING_WORKERS", 4),
			CacheTTL:   time.Duration(getEnvAsInt("SCORING_CACHE_TTL_SECONDS", 900)) * time.Second,
			TopDetails: getEnvAsInt("SCORING_TOP_DETAILS", 20),
			Source:     getEnv("SCORING_SOURCE", SourceDataset),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "noshow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "noshow-risk"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent thresholds and hyperparameters
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Model.Trees < 1 {
		return fmt.Errorf("model trees must be positive, got %d", c.Model.Trees)
	}
	if c.Model.LearningRate <= 0 || c.Model.LearningRate > 1 {
		return fmt.Errorf("model learning rate must be in (0, 1], got %v", c.Model.LearningRate)
	}
	if c.Model.MaxDepth < 1 {
		return fmt.Errorf("model max depth must be positive, got %d", c.Model.MaxDepth)
	}
	if c.Split.TestRatio <= 0 || c.Split.TestRatio >= 1 {
		return fmt.Errorf("split test ratio must be in (0, 1), got %v", c.Split.TestRatio)
	}
	if c.Split.ValidationRatio < 0 || c.Split.ValidationRatio >= 1 {
		return fmt.Errorf("split validation ratio must be in [0, 1), got %v", c.Split.ValidationRatio)
	}
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("scoring workers must be positive, got %d", c.Scoring.Workers)
	}
	if c.Scoring.Source != SourceDataset && c.Scoring.Source != SourcePostgres {
		return fmt.Errorf("scoring source must be %q or %q, got %q", SourceDataset, SourcePostgres, c.Scoring.Source)
	}
	return nil
}

// Validate checks that policy thresholds are ordered and in range
func (p PolicyConfig) Validate() error {
	if !(0 < p.MediumThreshold && p.MediumThreshold < p.HighThreshold && p.HighThreshold <= 1) {
		return fmt.Errorf("policy tier thresholds must satisfy 0 < medium (%v) < high (%v) <= 1", p.MediumThreshold, p.HighThreshold)
	}
	if p.OverbookingLowerRate > p.OverbookingUpperRate {
		return fmt.Errorf("overbooking lower rate %v exceeds upper rate %v", p.OverbookingLowerRate, p.OverbookingUpperRate)
	}
	if !(p.OverbookingLowerCeiling <= p.OverbookingMiddleCeiling && p.OverbookingMiddleCeiling <= p.OverbookingUpperCeiling) {
		return fmt.Errorf("overbooking ceilings must be non-decreasing")
	}
	if p.MinimumWage <= 0 || p.SubsidyIncomeMultiple <= 0 || p.SubsidyMinDistanceKm < 0 {
		return fmt.Errorf("subsidy thresholds must be positive")
	}
	return nil
}

func loadPolicyFile(path string, policy *PolicyConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
