package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ServiceAuth      = "auth"
	ServiceFinancial = "financial"
	ServiceVoice     = "voice"
	ServiceMemory    = "memory"
)

const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

const (
	DefaultListenAddr        = ":3000"
	DefaultZohoAuthURL       = "https://accounts.zoho.com/oauth/v2/auth"
	DefaultZohoTokenURL      = "https://accounts.zoho.com/oauth/v2/token"
	DefaultZohoScope         = "ZohoBooks.fullaccess.all"
	DefaultBufferSeconds     = 300
	DefaultSpeechToTextModel = "whisper-1"
	DefaultTextToSpeechModel = "tts-1"
	DefaultTextModel         = "gpt-4-turbo-preview"
	DefaultVoice             = "alloy"
	DefaultSystemPrompt      = "You are a voice-enabled financial assistant for a CFO. Answer concisely and professionally."
	DefaultSQLiteDSN         = "kbooks.db"
)

var AllServices = []string{ServiceAuth, ServiceFinancial, ServiceVoice, ServiceMemory}

var (
	ErrIncompleteOAuthConfig = errors.New("zoho oauth configuration is incomplete")
	ErrMissingAIKey          = errors.New("ai provider api key is required")
	ErrMissingAuthServiceURL = errors.New("auth service url is not set")
	ErrUnknownService        = errors.New("unknown service")
	ErrUnknownBackend        = errors.New("unknown datastore backend")
)

// environment names understood in addition to the KBOOKS_ prefixed keys
var envBindings = map[string]string{
	"zoho.clientID":         "ZOHO_CLIENT_ID",
	"zoho.clientSecret":     "ZOHO_CLIENT_SECRET",
	"zoho.redirectURI":      "ZOHO_REDIRECT_URI",
	"endpoints.auth":        "AUTH_SERVICE_URL",
	"endpoints.financial":   "FINANCIAL_SERVICE_URL",
	"endpoints.memory":      "MEMORY_SERVICE_URL",
	"ai.apiKey":             "OPENAI_API_KEY",
	"masterKey":             "KBOOKS_MASTER_KEY",
	"datastore.backend":     "KBOOKS_DATASTORE",
	"mysql.dsn":             "KBOOKS_MYSQL_DSN",
	"redis.url":             "KBOOKS_REDIS_URL",
	"zoho.stateSecret":      "KBOOKS_STATE_SECRET",
	"listenAddr":            "KBOOKS_LISTEN_ADDR",
	"services":              "KBOOKS_SERVICES",
	"ai.baseURL":            "OPENAI_BASE_URL",
	"zoho.bufferSeconds":    "KBOOKS_TOKEN_BUFFER_SECONDS",
	"datastore.autoMigrate": "KBOOKS_AUTO_MIGRATE",
}

type ZohoConfig struct {
	ClientID      string   `mapstructure:"clientID"`
	ClientSecret  string   `mapstructure:"clientSecret"`
	RedirectURI   string   `mapstructure:"redirectURI"`
	AuthURL       string   `mapstructure:"authURL"`
	TokenURL      string   `mapstructure:"tokenURL"`
	Scope         []string `mapstructure:"scope"`
	StateSecret   string   `mapstructure:"stateSecret"`
	BufferSeconds int64    `mapstructure:"bufferSeconds"`

	// BooksAPIBaseURL pins the Books API endpoint instead of deriving it from
	// the api domain of the tokens.
	BooksAPIBaseURL string `mapstructure:"booksAPIBaseURL"`
}

// Complete reports whether the client credentials needed for the consent flow are set.
func (c ZohoConfig) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

type EndpointsConfig struct {
	Auth      string `mapstructure:"auth"`
	Financial string `mapstructure:"financial"`
	Memory    string `mapstructure:"memory"`
}

type AIConfig struct {
	APIKey            string `mapstructure:"apiKey"`
	BaseURL           string `mapstructure:"baseURL"`
	SpeechToTextModel string `mapstructure:"speechToTextModel"`
	TextToSpeechModel string `mapstructure:"textToSpeechModel"`
	TextModel         string `mapstructure:"textModel"`
	Voice             string `mapstructure:"voice"`
	SystemPrompt      string `mapstructure:"systemPrompt"`
}

type DatastoreConfig struct {
	Backend     string `mapstructure:"backend"`
	AutoMigrate bool   `mapstructure:"autoMigrate"`
}

type MySQLConfig struct {
	Dsn             string   `mapstructure:"dsn"`
	Replicas        []string `mapstructure:"replicas"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type Config struct {
	Debug        bool            `mapstructure:"debug"`
	MasterKey    string          `mapstructure:"masterKey"`
	ListenAddr   string          `mapstructure:"listenAddr"`
	TemplateDir  string          `mapstructure:"templateDir"`
	AllowOrigins []string        `mapstructure:"allowOrigins"`
	Services     []string        `mapstructure:"services"`
	Zoho         ZohoConfig      `mapstructure:"zoho"`
	Endpoints    EndpointsConfig `mapstructure:"endpoints"`
	AI           AIConfig        `mapstructure:"ai"`
	Datastore    DatastoreConfig `mapstructure:"datastore"`
	MySQL        MySQLConfig     `mapstructure:"mysql"`
	Redis        RedisConfig     `mapstructure:"redis"`
}

func (c *Config) IsEnabled(service string) bool {
	return slices.Contains(c.Services, service)
}

// localBaseURL is the address sibling services are reached at when they run in this process.
func (c *Config) localBaseURL(service string) string {
	_, port, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("http://127.0.0.1:%s/%s", port, service)
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if len(c.Services) == 0 {
		c.Services = AllServices
	}
	for _, svc := range c.Services {
		if !slices.Contains(AllServices, svc) {
			return fmt.Errorf("%w: %s", ErrUnknownService, svc)
		}
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.Zoho.AuthURL == "" {
		c.Zoho.AuthURL = DefaultZohoAuthURL
	}
	if c.Zoho.TokenURL == "" {
		c.Zoho.TokenURL = DefaultZohoTokenURL
	}
	if len(c.Zoho.Scope) == 0 {
		c.Zoho.Scope = []string{DefaultZohoScope}
	}
	if c.Zoho.BufferSeconds <= 0 {
		c.Zoho.BufferSeconds = DefaultBufferSeconds
	}
	if c.AI.SpeechToTextModel == "" {
		c.AI.SpeechToTextModel = DefaultSpeechToTextModel
	}
	if c.AI.TextToSpeechModel == "" {
		c.AI.TextToSpeechModel = DefaultTextToSpeechModel
	}
	if c.AI.TextModel == "" {
		c.AI.TextModel = DefaultTextModel
	}
	if c.AI.Voice == "" {
		c.AI.Voice = DefaultVoice
	}
	if c.AI.SystemPrompt == "" {
		c.AI.SystemPrompt = DefaultSystemPrompt
	}
	if c.Endpoints.Auth == "" && c.IsEnabled(ServiceAuth) {
		c.Endpoints.Auth = c.localBaseURL(ServiceAuth)
	}
	if c.Endpoints.Financial == "" && c.IsEnabled(ServiceFinancial) {
		c.Endpoints.Financial = c.localBaseURL(ServiceFinancial)
	}
	if c.Endpoints.Memory == "" && c.IsEnabled(ServiceMemory) {
		c.Endpoints.Memory = c.localBaseURL(ServiceMemory)
	}
	c.Endpoints.Auth = strings.TrimSuffix(c.Endpoints.Auth, "/")
	c.Endpoints.Financial = strings.TrimSuffix(c.Endpoints.Financial, "/")
	c.Endpoints.Memory = strings.TrimSuffix(c.Endpoints.Memory, "/")

	if c.Datastore.Backend == "" {
		c.Datastore.Backend = BackendSQL
	}
	switch c.Datastore.Backend {
	case BackendSQL:
		if c.MySQL.Dsn != "" {
			if _, err := mysql.ParseDSN(c.MySQL.Dsn); err != nil {
				return fmt.Errorf("invalid mysql dsn: %w", err)
			}
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis url is required for the redis datastore")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Datastore.Backend)
	}
	return nil
}

// Validate checks that every enabled service has the settings it cannot run without.
func (c *Config) Validate() error {
	if c.IsEnabled(ServiceAuth) && !c.Zoho.Complete() {
		return ErrIncompleteOAuthConfig
	}
	if c.IsEnabled(ServiceFinancial) && c.Endpoints.Auth == "" {
		return ErrMissingAuthServiceURL
	}
	if c.IsEnabled(ServiceVoice) && c.AI.APIKey == "" {
		return ErrMissingAIKey
	}
	return nil
}

func loadDotEnv(filename string) error {
	if err := godotenv.Load(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// configKeys lists the dotted viper key of every leaf field in t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(field.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// bindEnvKeys registers every config key with viper so that unmarshalling
// picks up KBOOKS_<SECTION>_<KEY> even when no config file sets the key.
func bindEnvKeys(v *viper.Viper) error {
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		names := []string{key}
		if alias, ok := envBindings[key]; ok {
			names = append(names, alias)
		}
		names = append(names, "KBOOKS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		if err := v.BindEnv(names...); err != nil {
			return err
		}
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("kbooks")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvKeys(v); err != nil {
		return nil, err
	}

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
