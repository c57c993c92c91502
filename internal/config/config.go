// Package config loads the sync settings from defaults, an optional YAML file, a .env
// file and INPUT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/renderinc/issue-sync/internal/schema"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// MaxBatchSize is the hard ceiling on objects per upsert.
const MaxBatchSize = 100

// Store backends.
const (
	StoreWeaviate = "weaviate"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds all sync configuration
type Config struct {
	// GitHub
	GitHubToken  string  `yaml:"github_token"`
	GitHubAPIURL string  `yaml:"github_api_url"`
	RepoOwner    string  `yaml:"repo_owner"`
	RepoName     string  `yaml:"repo_name"`
	State        string  `yaml:"state"` // all, open, closed
	MaxRetries   int     `yaml:"max_retries"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited

	// Store
	Store              string `yaml:"store"`
	WeaviateURL        string `yaml:"weaviate_url"`
	WeaviateAPIKey     string `yaml:"weaviate_api_key"`
	DataDir            string `yaml:"data_dir"`
	Collection         string `yaml:"collection"`
	MetadataCollection string `yaml:"metadata_collection"` // default: <collection>SyncState
	BatchSize          int    `yaml:"batch_size"`
	IncludeComments    bool   `yaml:"include_comments"`

	// Vectorisation
	Vectorizer         string                 `yaml:"vectorizer"`
	VectorizerSettings map[string]any         `yaml:"vectorizer_settings"`
	Credentials        vectorizer.Credentials `yaml:"credentials"`

	// Local embedder for the sqlite store; empty disables vectors.
	Embedder      string `yaml:"embedder"`
	EmbedderURL   string `yaml:"embedder_url"`
	EmbedderModel string `yaml:"embedder_model"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		GitHubAPIURL:    "https://api.github.com",
		State:           "all",
		MaxRetries:      3,
		Store:           StoreWeaviate,
		DataDir:         "./data",
		Collection:      "GitHubIssue",
		BatchSize:       MaxBatchSize,
		IncludeComments: true,
		Vectorizer:      vectorizer.Transformers.String(),
	}
}

// Load reads the configuration with the .env file of the working directory.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles layers defaults, the YAML file at configPath (optional), envFile (ignored
// when absent) and the process environment.
func LoadFiles(configPath, envFile string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			// existing variables win over the file
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyRepositoryFallback()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, names ...string) {
		for _, n := range names {
			if v, ok := os.LookupEnv(n); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	integer := func(dst *int, name string) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(dst *bool, name string) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	float := func(dst *float64, name string) {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}

	str(&c.GitHubToken, "INPUT_GITHUB_TOKEN", "GITHUB_TOKEN")
	str(&c.GitHubAPIURL, "INPUT_GITHUB_API_URL", "GITHUB_API_URL")
	str(&c.RepoOwner, "INPUT_TARGET_REPO_OWNER")
	str(&c.RepoName, "INPUT_TARGET_REPO_NAME")
	str(&c.State, "INPUT_STATE")
	integer(&c.MaxRetries, "INPUT_MAX_RETRIES")
	float(&c.RateLimit, "INPUT_RATE_LIMIT")

	str(&c.Store, "INPUT_STORE")
	str(&c.WeaviateURL, "INPUT_WEAVIATE_URL")
	str(&c.WeaviateAPIKey, "INPUT_WEAVIATE_API_KEY")
	str(&c.DataDir, "INPUT_DATA_DIR")
	str(&c.Collection, "INPUT_CLASS_NAME")
	str(&c.MetadataCollection, "INPUT_METADATA_CLASS_NAME")
	integer(&c.BatchSize, "INPUT_BATCH_SIZE")
	boolean(&c.IncludeComments, "INPUT_INCLUDE_COMMENTS")

	str(&c.Vectorizer, "INPUT_VECTORIZER")
	if model := os.Getenv("INPUT_VECTORIZER_MODEL"); model != "" {
		if c.VectorizerSettings == nil {
			c.VectorizerSettings = map[string]any{}
		}
		c.VectorizerSettings["model"] = model
	}
	str(&c.Credentials.OpenAIKey, "INPUT_OPENAI_API_KEY")
	str(&c.Credentials.CohereKey, "INPUT_COHERE_API_KEY")
	str(&c.Credentials.HuggingFaceKey, "INPUT_HUGGINGFACE_API_KEY")

	str(&c.Embedder, "INPUT_EMBEDDER")
	str(&c.EmbedderURL, "INPUT_EMBEDDER_URL")
	str(&c.EmbedderModel, "INPUT_EMBEDDER_MODEL")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// applyRepositoryFallback fills owner/name from GITHUB_REPOSITORY when either is unset.
func (c *Config) applyRepositoryFallback() {
	if c.RepoOwner != "" && c.RepoName != "" {
		return
	}
	owner, name, ok := strings.Cut(os.Getenv("GITHUB_REPOSITORY"), "/")
	if !ok || owner == "" || name == "" {
		return
	}
	c.RepoOwner, c.RepoName = owner, name
}

// RepoKey returns the canonical owner/name key
func (c *Config) RepoKey() string {
	return c.RepoOwner + "/" + c.RepoName
}

// MetadataCollectionName returns the sync-state collection name.
func (c *Config) MetadataCollectionName() string {
	if c.MetadataCollection != "" {
		return c.MetadataCollection
	}
	return c.Collection + schema.MetadataSuffix
}

// EffectiveBatchSize returns the batch size capped at MaxBatchSize.
func (c *Config) EffectiveBatchSize() int {
	return min(c.BatchSize, MaxBatchSize)
}

// VectorizerKind parses the configured vectorizer.
func (c *Config) VectorizerKind() (vectorizer.Vectorizer, error) {
	return vectorizer.Parse(c.Vectorizer)
}

// Validate checks everything a sync run needs without touching the network. All
// missing required inputs are reported together.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GitHubToken) == "" {
		missing = append(missing, "github_token")
	}
	missing = append(missing, c.missingRepository()...)
	missing = append(missing, c.missingStore()...)
	if len(missing) > 0 {
		return missingInputs(missing)
	}

	switch c.State {
	case "all", "open", "closed":
	default:
		return fmt.Errorf("%w: state must be all, open or closed, got %q", ErrInvalidConfig, c.State)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	}
	return c.checkStore()
}

// ValidateStore checks the settings needed to open the store and manage its
// collections. GitHub credentials and the target repository are not required.
func (c *Config) ValidateStore() error {
	if missing := c.missingStore(); len(missing) > 0 {
		return missingInputs(missing)
	}
	return c.checkStore()
}

// ValidateRepository checks that the target repository is set.
func (c *Config) ValidateRepository() error {
	if missing := c.missingRepository(); len(missing) > 0 {
		return missingInputs(missing)
	}
	return nil
}

func missingInputs(names []string) error {
	return fmt.Errorf("%w: missing required inputs: %s", ErrInvalidConfig, strings.Join(names, ", "))
}

func blank(v string) bool { return strings.TrimSpace(v) == "" }

func (c *Config) missingRepository() []string {
	var missing []string
	if blank(c.RepoOwner) {
		missing = append(missing, "repo_owner")
	}
	if blank(c.RepoName) {
		missing = append(missing, "repo_name")
	}
	return missing
}

func (c *Config) missingStore() []string {
	var missing []string
	if blank(c.Collection) {
		missing = append(missing, "collection")
	}
	switch {
	case c.Store == StoreWeaviate && blank(c.WeaviateURL):
		missing = append(missing, "weaviate_url")
	case c.Store == StoreSQLite && blank(c.DataDir):
		missing = append(missing, "data_dir")
	}
	return missing
}

func (c *Config) checkStore() error {
	switch c.Store {
	case StoreWeaviate, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q (supported: weaviate, sqlite, memory)", ErrInvalidConfig, c.Store)
	}

	v, err := c.VectorizerKind()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	// only Weaviate calls the vectorizer's third-party API
	if c.Store == StoreWeaviate {
		if _, err := v.Headers(c.Credentials); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	switch c.Embedder {
	case "", "none", "ollama", "lmstudio":
	default:
		return fmt.Errorf("%w: unknown embedder %q (supported: ollama, lmstudio)", ErrInvalidConfig, c.Embedder)
	}
	return nil
}
