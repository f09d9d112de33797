// Package config loads atlasmcp settings.
//
// Precedence: defaults < user config (~/.atlasmcp/config.yaml) < project
// config (.atlasmcp/config.yaml, found by walking up from the working
// directory) < environment. A .env file in the working directory is loaded
// into the environment first; variables already set are kept.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
)

const (
	KeyJiraBaseURL  = "jira.base_url"
	KeyJiraEmail    = "jira.email"
	KeyJiraAPIToken = "jira.api_token"

	KeyConfluenceBaseURL  = "confluence.base_url"
	KeyConfluenceEmail    = "confluence.email"
	KeyConfluenceAPIToken = "confluence.api_token"

	KeyMirrorDir   = "mirror.dir"
	KeyJournalDir  = "journal.dir"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
	KeyHTTPTimeout = "http.timeout"
)

const (
	envPrefix = "ATLASMCP"
	dirName   = ".atlasmcp"
	fileName  = "config.yaml"

	DefaultMirrorDir = ".atlasmcp/mirror"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the resolved configuration.
type Config struct {
	Jira       atlassian.Connection
	Confluence atlassian.Connection

	// MirrorDir is absolute.
	MirrorDir   string
	JournalDir  string
	LogLevel    string
	LogFormat   string
	HTTPTimeout time.Duration

	// Files that contributed, for diagnostics. Empty when absent.
	UserFile    string
	ProjectFile string
}

type loadSettings struct {
	workingDir        string
	userConfigPath    string
	projectConfigPath string
	dotEnvPath        string
	noDotEnv          bool
}

// Option configures Load. Useful for tests to override paths.
type Option func(*loadSettings)

// WithWorkingDir overrides the directory used for project config discovery,
// relative mirror paths and the .env file.
func WithWorkingDir(dir string) Option {
	return func(s *loadSettings) {
		s.workingDir = dir
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(s *loadSettings) {
		s.userConfigPath = path
	}
}

// WithProjectConfig explicitly sets the project config path instead of
// discovery.
func WithProjectConfig(path string) Option {
	return func(s *loadSettings) {
		s.projectConfigPath = path
	}
}

// WithDotEnv loads the given .env file instead of <working dir>/.env.
func WithDotEnv(path string) Option {
	return func(s *loadSettings) {
		s.dotEnvPath = path
	}
}

// WithoutDotEnv skips .env loading.
func WithoutDotEnv() Option {
	return func(s *loadSettings) {
		s.noDotEnv = true
	}
}

// Load resolves the configuration. Missing credentials are not an error
// here; they surface from Connection.Validate when a client is used.
func Load(opts ...Option) (*Config, error) {
	settings := loadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	if !settings.noDotEnv {
		path := settings.dotEnvPath
		if path == "" {
			path = filepath.Join(workingDir, ".env")
		}
		if err := loadDotEnv(path); err != nil {
			return nil, err
		}
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return nil, err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return nil, err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	merged, err := mergeConfigFile(v, userConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	}
	if merged {
		cfg.UserFile = userConfigPath
	}
	merged, err = mergeConfigFile(v, projectConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load project config: %w", err)
	}
	if merged {
		cfg.ProjectFile = projectConfigPath
	}

	cfg.Jira = atlassian.Connection{
		Service:  "jira",
		BaseURL:  strings.TrimRight(v.GetString(KeyJiraBaseURL), "/"),
		Email:    v.GetString(KeyJiraEmail),
		APIToken: v.GetString(KeyJiraAPIToken),
	}
	cfg.Confluence = atlassian.Connection{
		Service:  "confluence",
		BaseURL:  strings.TrimRight(v.GetString(KeyConfluenceBaseURL), "/"),
		Email:    v.GetString(KeyConfluenceEmail),
		APIToken: v.GetString(KeyConfluenceAPIToken),
	}
	// Cloud sites serve Confluence under /wiki of the same host, with the
	// same account token.
	if cfg.Confluence.BaseURL == "" && cfg.Jira.BaseURL != "" {
		cfg.Confluence.BaseURL = cfg.Jira.BaseURL + "/wiki"
	}
	if cfg.Confluence.Email == "" {
		cfg.Confluence.Email = cfg.Jira.Email
	}
	if cfg.Confluence.APIToken == "" {
		cfg.Confluence.APIToken = cfg.Jira.APIToken
	}

	cfg.MirrorDir = resolvePath(workingDir, v.GetString(KeyMirrorDir))
	cfg.JournalDir = resolvePath(workingDir, v.GetString(KeyJournalDir))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel)))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat)))
	cfg.HTTPTimeout = v.GetDuration(KeyHTTPTimeout)
	if cfg.HTTPTimeout < 0 {
		return nil, fmt.Errorf("%s must not be negative", KeyHTTPTimeout)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault(KeyJiraBaseURL, "")
	v.SetDefault(KeyJiraEmail, "")
	v.SetDefault(KeyJiraAPIToken, "")
	v.SetDefault(KeyConfluenceBaseURL, "")
	v.SetDefault(KeyConfluenceEmail, "")
	v.SetDefault(KeyConfluenceAPIToken, "")
	v.SetDefault(KeyMirrorDir, DefaultMirrorDir)
	v.SetDefault(KeyJournalDir, filepath.Join(home, dirName))
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyHTTPTimeout, 0)
}

// bindEnv adds the unprefixed variable names other Atlassian tools use.
// The prefixed name wins when both are set.
func bindEnv(v *viper.Viper) error {
	aliases := map[string]string{
		KeyJiraBaseURL:        "JIRA_BASE_URL",
		KeyJiraEmail:          "JIRA_EMAIL",
		KeyJiraAPIToken:       "JIRA_API_TOKEN",
		KeyConfluenceBaseURL:  "CONFLUENCE_BASE_URL",
		KeyConfluenceEmail:    "CONFLUENCE_EMAIL",
		KeyConfluenceAPIToken: "CONFLUENCE_API_TOKEN",
	}
	for key, alias := range aliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, fileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func resolvePath(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
