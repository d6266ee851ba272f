// Package config loads doq settings from defaults, ~/.doq/config.yaml and
// the environment into one explicit Config value. Nothing here is global:
// callers pass the loaded Config into each constructor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of settings for one invocation.
type Config struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Bitbucket   BitbucketConfig   `mapstructure:"bitbucket"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Bootstrap   BootstrapConfig   `mapstructure:"bootstrap"`
	Kube        KubeConfig        `mapstructure:"kube"`
	SSH         SSHConfig         `mapstructure:"ssh"`
	Log         LogConfig         `mapstructure:"log"`
}

type RegistryConfig struct {
	Namespace    string `mapstructure:"namespace"`
	HubURL       string `mapstructure:"hub_url"`
	DockerConfig string `mapstructure:"docker_config"`
}

type BitbucketConfig struct {
	APIBase  string `mapstructure:"api_base"`
	Org      string `mapstructure:"org"`
	CICDPath string `mapstructure:"cicd_path"`
}

// CredentialsConfig selects which credential sources are consulted.
type CredentialsConfig struct {
	File string `mapstructure:"file"`
	// RemoteOnly disables every local source; the bootstrap service must answer.
	RemoteOnly bool `mapstructure:"remote_only"`
	// RemoteFallback lets the bootstrap service fill gaps left by the file.
	RemoteFallback bool   `mapstructure:"remote_fallback"`
	Keyring        bool   `mapstructure:"keyring"`
	Netrc          string `mapstructure:"netrc"`
	NetrcMachine   string `mapstructure:"netrc_machine"`
}

// BootstrapConfig points at the remote credential service. The token comes
// from a separate login and is an explicit input here.
type BootstrapConfig struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	Insecure bool   `mapstructure:"insecure"`
}

type KubeConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
}

type SSHConfig struct {
	User            string `mapstructure:"user"`
	Port            int    `mapstructure:"port"`
	KeyFile         string `mapstructure:"key_file"`
	KnownHosts      string `mapstructure:"known_hosts"`
	InsecureHostKey bool   `mapstructure:"insecure_host_key"`
	TargetPort      int    `mapstructure:"target_port"`
}

type LogConfig struct {
	File       bool   `mapstructure:"file"`
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Dir returns ~/.doq.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".doq"
	}
	return filepath.Join(home, ".doq")
}

func homePath(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(parts...)
	}
	return filepath.Join(append([]string{home}, parts...)...)
}

// legacyEnv lists environment names the older tooling used for some keys.
// The DOQ_ prefixed name always wins; aliases are checked in order.
var legacyEnv = map[string][]string{
	"credentials.remote_only": {"DOQ_CREDENTIALS_REMOTE_ONLY", "RANCHER_AUTH"},
	"registry.namespace":      {"DOQ_REGISTRY_NAMESPACE", "DOQ_DOCKER_NAMESPACE", "DOCKER_UTILS_REGISTRY_NAMESPACE"},
	"bitbucket.org":           {"DOQ_BITBUCKET_ORG", "DOCKER_UTILS_BITBUCKET_ORG"},
	"bitbucket.api_base":      {"DOQ_BITBUCKET_API_BASE", "DOCKER_UTILS_BITBUCKET_API_BASE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("registry.namespace", "loyaltolpi")
	v.SetDefault("registry.hub_url", "https://hub.docker.com")
	v.SetDefault("registry.docker_config", homePath(".docker", "config.json"))

	v.SetDefault("bitbucket.api_base", "https://api.bitbucket.org/2.0")
	v.SetDefault("bitbucket.org", "loyaltoid")
	v.SetDefault("bitbucket.cicd_path", "cicd/cicd.json")

	v.SetDefault("credentials.file", filepath.Join(Dir(), "auth.json"))
	v.SetDefault("credentials.remote_only", false)
	v.SetDefault("credentials.remote_fallback", false)
	v.SetDefault("credentials.keyring", false)
	v.SetDefault("credentials.netrc", homePath(".netrc"))
	v.SetDefault("credentials.netrc_machine", "bitbucket.org")

	v.SetDefault("bootstrap.url", "")
	v.SetDefault("bootstrap.token", "")
	v.SetDefault("bootstrap.username", "")
	v.SetDefault("bootstrap.insecure", false)

	v.SetDefault("kube.kubeconfig", "")
	v.SetDefault("kube.context", "")

	v.SetDefault("ssh.user", "devops")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.key_file", homePath(".ssh", "id_rsa"))
	v.SetDefault("ssh.known_hosts", homePath(".ssh", "known_hosts"))
	v.SetDefault("ssh.insecure_host_key", false)
	v.SetDefault("ssh.target_port", 3000)

	v.SetDefault("log.file", true)
	v.SetDefault("log.dir", filepath.Join(Dir(), "logs"))
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.max_backups", 3)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range legacyEnv {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// Load reads the config file at path, or ~/.doq/config.yaml when path is
// empty. A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := newViper()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(Dir(), "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.expand()
	return &cfg, nil
}

func (c *Config) expand() {
	c.Registry.DockerConfig = expandHome(c.Registry.DockerConfig)
	c.Credentials.File = expandHome(c.Credentials.File)
	c.Credentials.Netrc = expandHome(c.Credentials.Netrc)
	c.SSH.KeyFile = expandHome(c.SSH.KeyFile)
	c.SSH.KnownHosts = expandHome(c.SSH.KnownHosts)
	c.Kube.Kubeconfig = expandHome(c.Kube.Kubeconfig)
	c.Log.Dir = expandHome(c.Log.Dir)
	c.Registry.HubURL = strings.TrimRight(c.Registry.HubURL, "/")
	c.Bitbucket.APIBase = strings.TrimRight(c.Bitbucket.APIBase, "/")
	c.Bootstrap.URL = strings.TrimRight(c.Bootstrap.URL, "/")
}

func expandHome(p string) string {
	if p == "~" {
		return homePath()
	}
	if strings.HasPrefix(p, "~/") {
		return homePath(p[2:])
	}
	return p
}
