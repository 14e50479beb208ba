package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	Debug        bool   `env:"DEBUG" envDefault:"false"`
	Port         string `env:"PORT" envDefault:"3000"`
	MetricPort   string `env:"METRIC_PORT" envDefault:"9090"`
	Domain       string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	CookieDomain string `env:"COOKIE_DOMAIN" envDefault:""`
	JWTSecret    string `env:"JWT_SECRET,required,notEmpty"`

	STUNURLs []string `env:"STUN_URLS" envDefault:"stun:stun.l.google.com:19302" envSeparator:","`

	TurnUDPServer webrtc.ICEServer
	TurnTCPServer webrtc.ICEServer

	CoturnServer CoturnConfig
	TurnServer   TurnServerConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
}

type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"peercall"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

// RedisConfig - если адрес пустой, присутствие хранится в памяти
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type CoturnConfig struct {
	Host     string `env:"COTURN_HOST"`
	Username string `env:"COTURN_USERNAME"`
	Password string `env:"COTURN_PASSWORD"`

	// Secret - нужен для генерации временных кредов для клиентов, обязателен если TURN настроен
	Secret string `env:"COTURN_SECRET"`
}

// TurnServerConfig - встроенный TURN сервер на pion/turn
type TurnServerConfig struct {
	Enabled  bool   `env:"TURN_ENABLED" envDefault:"false"`
	PublicIP string `env:"TURN_PUBLIC_IP" envDefault:"127.0.0.1"`
	Port     int    `env:"TURN_PORT" envDefault:"3478"`
	Realm    string `env:"TURN_REALM" envDefault:"peercall"`
}

var ErrTurnSecretRequired = errors.New("turn secret is required when a TURN relay is configured (COTURN_SECRET)")

func New() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	turnHost := c.CoturnServer.Host
	if turnHost == "" && c.TurnServer.Enabled {
		turnHost = fmt.Sprintf("%s:%d", c.TurnServer.PublicIP, c.TurnServer.Port)
	}

	if turnHost != "" {
		c.TurnUDPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", turnHost)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}

		c.TurnTCPServer = webrtc.ICEServer{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", turnHost)},
			Username:   c.CoturnServer.Username,
			Credential: c.CoturnServer.Password,
		}

		if c.CoturnServer.Secret == "" {
			return nil, ErrTurnSecretRequired
		}
	}

	if !c.HasTURN() {
		slog.Warn(
			"no TURN relay configured, calls behind symmetric NAT will fail",
			slog.String("hint", "set COTURN_HOST or TURN_ENABLED=true"),
		)
	}

	return &c, nil
}

func (c *Config) HasTURN() bool {
	return len(c.TURNURLs()) > 0
}

// TURNURLs возвращает адреса TURN серверов, если они настроены
func (c *Config) TURNURLs() []string {
	var urls []string

	for _, srv := range []webrtc.ICEServer{c.TurnUDPServer, c.TurnTCPServer} {
		urls = append(urls, srv.URLs...)
	}

	return urls
}

// AgentConfig - настройки консольного клиента звонков
type AgentConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:3000"`
	Username  string `env:"AGENT_USERNAME"`
	Password  string `env:"AGENT_PASSWORD"`

	RingTimeout      time.Duration `env:"CALL_RING_TIMEOUT" envDefault:"30s"`
	InitTimeout      time.Duration `env:"CALL_INIT_TIMEOUT" envDefault:"5s"`
	InitPollInterval time.Duration `env:"CALL_INIT_POLL_INTERVAL" envDefault:"100ms"`
	FatalDelay       time.Duration `env:"CALL_FATAL_DELAY" envDefault:"3s"`

	RecordDir   string `env:"AGENT_RECORD_DIR" envDefault:"recordings"`
	HistoryPath string `env:"AGENT_HISTORY_PATH" envDefault:"calls.db"`
}

func NewAgent() (*AgentConfig, error) {
	_ = godotenv.Load()

	c, err := env.ParseAs[AgentConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	return &c, nil
}

// WebsocketURL переводит http(s) адрес сервера в ws(s)
func (c *AgentConfig) WebsocketURL() string {
	switch {
	case strings.HasPrefix(c.ServerURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.ServerURL, "https://") + "/api/v1/ws"
	case strings.HasPrefix(c.ServerURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.ServerURL, "http://") + "/api/v1/ws"
	default:
		return c.ServerURL + "/api/v1/ws"
	}
}
