package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	private Private
}

type Public struct {
	HTTPAddr       string        `yaml:"http_addr"`
	FrontendURL    string        `yaml:"frontend_url"`
	SecureCookies  bool          `yaml:"secure_cookies"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	LogLevel       string        `yaml:"log_level"`
	LogJSON        bool          `yaml:"log_json"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	AccessTokenTTL       time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `yaml:"refresh_token_ttl"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl"`
	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl"`
	BcryptCost           int           `yaml:"bcrypt_cost"`

	// lets unverified accounts log in, off unless set explicitly
	SkipVerification    bool `yaml:"skip_verification"`
	RotateRefreshTokens bool `yaml:"rotate_refresh_tokens"`

	PasswordPolicy PasswordPolicy `yaml:"password_policy"`
	EmailRetry     EmailRetry     `yaml:"email_retry"`
	RateLimits     RateLimits     `yaml:"rate_limits"`
}

type PasswordPolicy struct {
	MinLength      int  `yaml:"min_length"`
	MaxLength      int  `yaml:"max_length"` // bytes, bcrypt ignores anything past 72
	RequireUpper   bool `yaml:"require_upper"`
	RequireLower   bool `yaml:"require_lower"`
	RequireDigit   bool `yaml:"require_digit"`
	RequireSpecial bool `yaml:"require_special"`
}

type EmailRetry struct {
	Attempts  uint64        `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

// Rate is in requests per second, Burst is the bucket size.
type Limit struct {
	Rate  float64 `yaml:"rate"`
	Burst float64 `yaml:"burst"`
}

type RateLimits struct {
	Login Limit `yaml:"login"`
	Email Limit `yaml:"email"`
	IP    Limit `yaml:"ip"`
}

type Private struct {
	Pg         Pg     `yaml:"pg"`
	Jwt        Jwt    `yaml:"jwt"`
	AdminToken string `yaml:"admin_token"`
	Redis      Redis  `yaml:"redis"`
	Email      Email  `yaml:"email"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (p Pg) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Dbname, p.SSLMode)
}

type Jwt struct {
	AccessSecret  string `yaml:"access_secret"`
	RefreshSecret string `yaml:"refresh_secret"`
}

// Empty Addr keeps the refresh-token ledger in process memory.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Email struct {
	Provider   string        `yaml:"provider"` // smtp, sendgrid, mailgun or log
	From       string        `yaml:"from"`
	SenderName string        `yaml:"sender_name"`
	SMTP       SMTP          `yaml:"smtp"`
	SendGrid   SendGrid      `yaml:"sendgrid"`
	Mailgun    Mailgun       `yaml:"mailgun"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type SendGrid struct {
	Key string `yaml:"key"`
}

type Mailgun struct {
	Domain string `yaml:"domain"`
	Key    string `yaml:"key"`
}

// private part is read through accessors only

func (c *Config) Pg() Pg {
	return c.private.Pg
}

func (c *Config) Jwt() Jwt {
	return c.private.Jwt
}

func (c *Config) AdminToken() string {
	return c.private.AdminToken
}

func (c *Config) Redis() Redis {
	return c.private.Redis
}

func (c *Config) Email() Email {
	return c.private.Email
}

// New builds a config without files, used by tests and the in-memory mode.
func New(public Public, private Private) *Config {
	return &Config{public, private}
}

func DefaultPublic() Public {
	return Public{
		HTTPAddr:             ":8080",
		FrontendURL:          "http://localhost:5173",
		LogLevel:             "info",
		RequestTimeout:       30 * time.Second,
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		BcryptCost:           10,
		RotateRefreshTokens:  true,
		PasswordPolicy: PasswordPolicy{
			MinLength:      8,
			MaxLength:      72,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
		},
		EmailRetry: EmailRetry{Attempts: 3, BaseDelay: 200 * time.Millisecond},
		RateLimits: RateLimits{
			Login: Limit{Rate: 1.0 / 6, Burst: 5},
			Email: Limit{Rate: 1.0 / 60, Burst: 3},
			IP:    Limit{Rate: 10, Burst: 50},
		},
	}
}

func DefaultPrivate() Private {
	return Private{
		Pg:    Pg{Host: "localhost", Port: 5432, SSLMode: "disable"},
		Email: Email{Provider: "log", SMTP: SMTP{Port: 587}, Timeout: 10 * time.Second},
	}
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file: " + configPath)
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic(fmt.Sprintf("can't unmarshal config file %s: %v", configPath, err))
	}
}

// environment wins over private.yaml for secrets
var envOverrides = map[string]func(p *Private, v string){
	"CRMPORTAL_JWT_ACCESS_SECRET":  func(p *Private, v string) { p.Jwt.AccessSecret = v },
	"CRMPORTAL_JWT_REFRESH_SECRET": func(p *Private, v string) { p.Jwt.RefreshSecret = v },
	"CRMPORTAL_ADMIN_TOKEN":        func(p *Private, v string) { p.AdminToken = v },
	"CRMPORTAL_PG_PASSWORD":        func(p *Private, v string) { p.Pg.Password = v },
	"CRMPORTAL_EMAIL_PASSWORD":     func(p *Private, v string) { p.Email.SMTP.Password = v },
	"CRMPORTAL_SENDGRID_KEY":       func(p *Private, v string) { p.Email.SendGrid.Key = v },
	"CRMPORTAL_MAILGUN_KEY":        func(p *Private, v string) { p.Email.Mailgun.Key = v },
	"CRMPORTAL_REDIS_PASSWORD":     func(p *Private, v string) { p.Redis.Password = v },
	"CRMPORTAL_PG_PORT": func(p *Private, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			p.Pg.Port = port
		}
	},
}

func applyEnv(p *Private) {
	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok {
			apply(p, v)
		}
	}
}

func validate(public Public, private Private) error {
	if private.Jwt.AccessSecret == "" || private.Jwt.RefreshSecret == "" {
		return fmt.Errorf("jwt access_secret and refresh_secret are required")
	}
	if private.Jwt.AccessSecret == private.Jwt.RefreshSecret {
		return fmt.Errorf("jwt access_secret and refresh_secret must differ")
	}
	if public.AccessTokenTTL <= 0 || public.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if public.PasswordPolicy.MinLength < 1 || public.PasswordPolicy.MaxLength < public.PasswordPolicy.MinLength {
		return fmt.Errorf("password_policy bounds are inconsistent")
	}
	switch private.Email.Provider {
	case "smtp", "sendgrid", "mailgun", "log":
	default:
		return fmt.Errorf("unknown email provider %q", private.Email.Provider)
	}
	return nil
}

func MustLoad(configFolder string) *Config {
	public := DefaultPublic()
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	private := DefaultPrivate()
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)
	applyEnv(&private)

	if err := validate(public, private); err != nil {
		panic("invalid config: " + err.Error())
	}

	return &Config{public, private}
}
