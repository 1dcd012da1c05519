package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultIssueQuery selects the issues of one project that carry attachments.
// The project key is substituted for %s.
const DefaultIssueQuery = "PROJECT = '%s' AND attachments is not EMPTY"

// Config holds every setting a migration run needs. It is built once at
// startup and handed to the component constructors.
type Config struct {
	Jira    JiraConfig    `yaml:"jira"    mapstructure:"jira"`
	S3      S3Config      `yaml:"s3"      mapstructure:"s3"`
	Staging StagingConfig `yaml:"staging" mapstructure:"staging"`
	Log     LogConfig     `yaml:"log"     mapstructure:"log"`
	Run     RunConfig     `yaml:"run"     mapstructure:"run"`
	Workers WorkerConfig  `yaml:"workers" mapstructure:"workers"`
	Verify  VerifyConfig  `yaml:"verify"  mapstructure:"verify"`
	Ledger  LedgerConfig  `yaml:"ledger"  mapstructure:"ledger"`
}

// JiraConfig holds JIRA connection settings and the issue selection.
type JiraConfig struct {
	URL        string   `yaml:"url"         mapstructure:"url"`
	Email      string   `yaml:"email"       mapstructure:"email"`
	Token      string   `yaml:"token"       mapstructure:"token"`
	Projects   []string `yaml:"projects"    mapstructure:"projects"` // empty means all projects
	IssueQuery string   `yaml:"issue_query" mapstructure:"issue_query"`
	PageSize   int      `yaml:"page_size"   mapstructure:"page_size"`
}

// S3Config describes the destination bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket"               mapstructure:"bucket"`
	Region    string `yaml:"region"               mapstructure:"region"`
	AccessKey string `yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	Prefix    string `yaml:"prefix,omitempty"     mapstructure:"prefix"`
	Endpoint  string `yaml:"endpoint,omitempty"   mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style,omitempty" mapstructure:"path_style"`
}

// StagingConfig points at the local download area.
type StagingConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// LogConfig controls where progress lines go.
type LogConfig struct {
	File        string `yaml:"file"          mapstructure:"file"`
	WriteToFile bool   `yaml:"write_to_file" mapstructure:"write_to_file"`
	Debug       bool   `yaml:"debug"         mapstructure:"debug"`
}

// RunConfig holds the feature flags that gate optional pipeline stages.
type RunConfig struct {
	Upload       bool `yaml:"upload"        mapstructure:"upload"`
	SourceDelete bool `yaml:"source_delete" mapstructure:"source_delete"`
}

// WorkerConfig bounds transfer parallelism.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	QueueSize   int `yaml:"queue_size"  mapstructure:"queue_size"`
}

// VerifyConfig selects the post-upload check.
type VerifyConfig struct {
	RemoteSize bool `yaml:"remote_size" mapstructure:"remote_size"`
}

// LedgerConfig enables the optional durable transfer ledger.
type LedgerConfig struct {
	Path          string `yaml:"path,omitempty"           mapstructure:"path"`
	SkipCompleted bool   `yaml:"skip_completed,omitempty" mapstructure:"skip_completed"`
}

// Default returns a Config with every default applied and no credentials.
func Default() Config {
	return Config{
		Jira: JiraConfig{
			IssueQuery: DefaultIssueQuery,
			PageSize:   50,
		},
		Staging: StagingConfig{Root: "./jira_files"},
		Log: LogConfig{
			File:        "./output.txt",
			WriteToFile: true,
		},
		Run: RunConfig{
			Upload:       true,
			SourceDelete: false,
		},
		Workers: WorkerConfig{
			Concurrency: 4,
			QueueSize:   16,
		},
	}
}

// DefaultPath returns the default config file path (~/.jira-attachment-migrator.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jira-attachment-migrator.yaml"
	}
	return filepath.Join(home, ".jira-attachment-migrator.yaml")
}

var envBindings = map[string]string{
	"jira.url":              "JIRA_URL",
	"jira.email":            "JIRA_EMAIL",
	"jira.token":            "JIRA_TOKEN",
	"jira.issue_query":      "JIRA_ISSUE_QUERY",
	"jira.page_size":        "JIRA_PAGE_SIZE",
	"s3.bucket":             "S3_BUCKET",
	"s3.region":             "S3_REGION",
	"s3.access_key":         "AWS_ACCESS_KEY_ID",
	"s3.secret_key":         "AWS_SECRET_ACCESS_KEY",
	"s3.prefix":             "S3_PREFIX",
	"s3.endpoint":           "S3_ENDPOINT",
	"s3.path_style":         "S3_PATH_STYLE",
	"staging.root":          "STAGING_ROOT",
	"log.file":              "LOG_FILE",
	"log.write_to_file":     "LOG_WRITE_TO_FILE",
	"log.debug":             "DEBUG",
	"run.upload":            "RUN_UPLOAD",
	"run.source_delete":     "RUN_SOURCE_DELETE",
	"workers.concurrency":   "MAX_CONCURRENT",
	"workers.queue_size":    "QUEUE_SIZE",
	"verify.remote_size":    "VERIFY_REMOTE_SIZE",
	"ledger.path":           "LEDGER_PATH",
	"ledger.skip_completed": "LEDGER_SKIP_COMPLETED",
}

// Load reads config from the YAML file and applies .env and env var overrides.
// configPath may be empty to use the default path.
func Load(configPath string) (Config, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	def := Default()
	v.SetDefault("jira.issue_query", def.Jira.IssueQuery)
	v.SetDefault("jira.page_size", def.Jira.PageSize)
	v.SetDefault("staging.root", def.Staging.Root)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.write_to_file", def.Log.WriteToFile)
	v.SetDefault("run.upload", def.Run.Upload)
	v.SetDefault("run.source_delete", def.Run.SourceDelete)
	v.SetDefault("workers.concurrency", def.Workers.Concurrency)
	v.SetDefault("workers.queue_size", def.Workers.QueueSize)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	// JIRA_PROJECTS is a comma separated allow-list.
	if raw := os.Getenv("JIRA_PROJECTS"); raw != "" {
		cfg.Jira.Projects = SplitList(raw)
	}

	cfg.Jira.URL = strings.TrimRight(cfg.Jira.URL, "/")
	return cfg, nil
}

// SplitList splits a comma separated list, dropping blanks and upper-casing keys.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateJira checks only the JIRA connection settings.
func (c Config) ValidateJira() error {
	if c.Jira.URL == "" {
		return fmt.Errorf("JIRA URL is required (set in config file or JIRA_URL env var)")
	}
	if c.Jira.Email == "" {
		return fmt.Errorf("JIRA email is required (set in config file or JIRA_EMAIL env var)")
	}
	if c.Jira.Token == "" {
		return fmt.Errorf("JIRA token is required (set in config file or JIRA_TOKEN env var)")
	}
	return nil
}

// Validate checks that everything a migration run needs is present.
func (c Config) Validate() error {
	if err := c.ValidateJira(); err != nil {
		return err
	}
	if !singleVerb(c.Jira.IssueQuery) {
		return fmt.Errorf("issue query must contain exactly one %%s for the project key: %q", c.Jira.IssueQuery)
	}
	if c.Jira.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1, got %d", c.Jira.PageSize)
	}

	if c.Staging.Root == "" {
		return fmt.Errorf("staging root is required (set in config file or STAGING_ROOT env var)")
	}
	info, err := os.Stat(c.Staging.Root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("staging root %s doesn't exist", c.Staging.Root)
	}

	if c.Run.Upload {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when upload is enabled (set in config file or S3_BUCKET env var)")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when upload is enabled (set in config file or S3_REGION env var)")
		}
	}
	if strings.HasPrefix(c.S3.Prefix, "/") || strings.HasPrefix(c.S3.Prefix, "./") {
		return fmt.Errorf("S3 prefix must be a relative path like \"folder\", got %q", c.S3.Prefix)
	}

	if c.Workers.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.Workers.Concurrency)
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.Workers.QueueSize)
	}
	if c.Ledger.SkipCompleted && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.skip_completed requires ledger.path")
	}
	return nil
}

// singleVerb reports whether query holds exactly one %s and otherwise only
// %%-escaped percent signs.
func singleVerb(query string) bool {
	verbs := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '%' {
			continue
		}
		if i+1 == len(query) {
			return false
		}
		i++
		switch query[i] {
		case '%':
		case 's':
			verbs++
		default:
			return false
		}
	}
	return verbs == 1
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
