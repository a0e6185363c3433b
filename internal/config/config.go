package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"

	TransportInProcess = "inprocess"
	TransportKafka     = "kafka"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      Redis     `yaml:"redis"`
	Storage    Storage   `yaml:"storage"`
	ShortCode  ShortCode `yaml:"short_code"`
	RateLimit  RateLimit `yaml:"rate_limit"`
	Analytics  Analytics `yaml:"analytics"`
	Auth       Auth      `yaml:"auth"`
	Cache      Cache     `yaml:"cache"`
	Kafka      Kafka     `yaml:"kafka"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" env:"HTTP_SERVER_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file" env:"HTTP_SERVER_CERT_FILE"`
	KeyFile        string        `yaml:"key_file" env:"HTTP_SERVER_KEY_FILE"`
	// TrustedProxies holds CIDRs or single addresses of reverse proxies
	// allowed to set forwarding headers.
	TrustedProxies []string `yaml:"trusted_proxies" env:"HTTP_SERVER_TRUSTED_PROXIES" env-separator:","`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is treated as
// a single-host prefix.
func (s *HTTPServer) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	const op = "config.HTTPServer.TrustedProxyPrefixes"

	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		if raw == "" {
			continue
		}

		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid trusted proxy %q", op, raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

type Postgres struct {
	User            string        `yaml:"user" env:"POSTGRES_USER"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	Host            string        `yaml:"host" env:"POSTGRES_HOST"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT"`
	DB              string        `yaml:"db" env:"POSTGRES_DB"`
	SSLMode         string        `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

var defaultRedis = Redis{
	Addr:         "localhost:6379",
	DialTimeout:  time.Second,
	ReadTimeout:  200 * time.Millisecond,
	WriteTimeout: 200 * time.Millisecond,
	PoolSize:     20,
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
}

type ShortCode struct {
	Length         int      `yaml:"length" env:"SHORT_CODE_LENGTH"`
	MaxAttempts    int      `yaml:"max_attempts"`
	MaxURLLength   int      `yaml:"max_url_length"`
	AllowedSchemes []string `yaml:"allowed_schemes"`
}

var defaultShortCode = ShortCode{
	Length:         7,
	MaxAttempts:    5,
	MaxURLLength:   2048,
	AllowedSchemes: []string{"http", "https"},
}

type Limit struct {
	Requests int64         `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type RateLimit struct {
	Backend  string        `yaml:"backend" env:"RATE_LIMIT_BACKEND"`
	FailOpen bool          `yaml:"fail_open" env:"RATE_LIMIT_FAIL_OPEN"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
	Shards   int           `yaml:"shards"`
	MaxKeys  int           `yaml:"max_keys"`
	User     Limit         `yaml:"user"`
	APIKey   Limit         `yaml:"api_key"`
	IP       Limit         `yaml:"ip"`
}

var defaultRateLimit = RateLimit{
	Backend:  RateLimitMemory,
	FailOpen: true,
	Prefix:   "ratelimit:",
	Timeout:  100 * time.Millisecond,
	Shards:   32,
	MaxKeys:  100_000,
	User:     Limit{Requests: 300, Window: time.Minute},
	APIKey:   Limit{Requests: 1000, Window: time.Minute},
	IP:       Limit{Requests: 60, Window: time.Minute},
}

type Analytics struct {
	Transport    string        `yaml:"transport" env:"ANALYTICS_TRANSPORT"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	HashKey      string        `yaml:"hash_key" env:"ANALYTICS_HASH_KEY"`
	RegexesPath  string        `yaml:"regexes_path"`
}

var defaultAnalytics = Analytics{
	Transport:    TransportInProcess,
	Workers:      4,
	QueueSize:    1024,
	WriteTimeout: 5 * time.Second,
}

type Auth struct {
	JWTSecret string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	APIKeys   []string `yaml:"api_keys" env:"API_KEYS" env-separator:","`
}

type Cache struct {
	Enabled     bool          `yaml:"enabled" env:"CACHE_ENABLED"`
	NumCounters int64         `yaml:"num_counters"`
	MaxCost     int64         `yaml:"max_cost"`
	TTL         time.Duration `yaml:"ttl"`
}

var defaultCache = Cache{
	Enabled:     true,
	NumCounters: 1e6,
	MaxCost:     100_000,
	TTL:         10 * time.Minute,
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

var defaultKafka = Kafka{
	Brokers: []string{"localhost:9092"},
	Topic:   "shortlink.visits",
	GroupID: "shortlink-analytics",
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to read environment: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Storage = Storage{Driver: StoragePostgres}
	cfg.ShortCode = defaultShortCode
	cfg.ShortCode.AllowedSchemes = slices.Clone(defaultShortCode.AllowedSchemes)
	cfg.RateLimit = defaultRateLimit
	cfg.Analytics = defaultAnalytics
	cfg.Cache = defaultCache
	cfg.Kafka = defaultKafka
	cfg.Kafka.Brokers = slices.Clone(defaultKafka.Brokers)
}

func (cfg *Config) validate() error {
	var errs []error

	if !slices.Contains([]string{EnvDev, EnvStage, EnvProd}, cfg.Env) {
		errs = append(errs, fmt.Errorf("unknown env %q", cfg.Env))
	}
	if !slices.Contains([]string{StorageMemory, StoragePostgres}, cfg.Storage.Driver) {
		errs = append(errs, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver))
	}
	if !slices.Contains([]string{RateLimitMemory, RateLimitRedis}, cfg.RateLimit.Backend) {
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend))
	}
	if !slices.Contains([]string{TransportInProcess, TransportKafka}, cfg.Analytics.Transport) {
		errs = append(errs, fmt.Errorf("unknown analytics transport %q", cfg.Analytics.Transport))
	}
	if _, err := cfg.HTTPServer.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShortCode.Length < 4 {
		errs = append(errs, fmt.Errorf("short code length %d is below 4", cfg.ShortCode.Length))
	}
	if cfg.ShortCode.MaxAttempts < 1 {
		errs = append(errs, errors.New("short code max attempts must be positive"))
	}
	for name, l := range map[string]Limit{"user": cfg.RateLimit.User, "api_key": cfg.RateLimit.APIKey, "ip": cfg.RateLimit.IP} {
		if l.Requests < 1 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %s must have positive requests and window", name))
		}
	}
	if len(cfg.Analytics.HashKey) > 64 {
		errs = append(errs, errors.New("analytics hash key longer than 64 bytes"))
	}
	if cfg.Analytics.Transport == TransportKafka && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka transport requires brokers"))
	}

	return errors.Join(errs...)
}
