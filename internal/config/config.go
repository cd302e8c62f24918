// Package config provides functionality for managing configuration options
// for the server using a config file, environment variables and command-line flags.
package config

import (
	"cmp"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address" yaml:"address" env:"SERVER_ADDRESS" env-default:"localhost:8080"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn" env:"DATABASE_DSN"`

	// Config is the path to the Config file.
	Config string `json:"-" yaml:"-"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" yaml:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" yaml:"tls_key" env:"TLS_KEY"`

	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// AllowedOrigins lists CORS origins allowed to call the API.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	Auth    AuthOptions    `json:"auth" yaml:"auth"`
	OpenAI  OpenAIOptions  `json:"openai" yaml:"openai"`
	Storage StorageOptions `json:"storage" yaml:"storage"`
	Google  GoogleOptions  `json:"google" yaml:"google"`
	SMTP    SMTPOptions    `json:"smtp" yaml:"smtp"`
}

// AuthOptions configures credential issuance.
type AuthOptions struct {
	SigningKeyPath string        `json:"signing_key_path" yaml:"signing_key_path" env:"SIGNING_KEY_PATH" env-default:"keys/signing.pem"`
	Issuer         string        `json:"issuer" yaml:"issuer" env:"AUTH_ISSUER" env-default:"pictag"`
	Audience       string        `json:"audience" yaml:"audience" env:"AUTH_AUDIENCE" env-default:"pictag-client"`
	TokenTTL       time.Duration `json:"token_ttl" yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"1h"`
	RefreshTTL     time.Duration `json:"refresh_ttl" yaml:"refresh_ttl" env:"AUTH_REFRESH_TTL" env-default:"720h"`
	ResetTTL       time.Duration `json:"reset_ttl" yaml:"reset_ttl" env:"AUTH_RESET_TTL" env-default:"1h"`
	ResetURL       string        `json:"reset_url" yaml:"reset_url" env:"AUTH_RESET_URL" env-default:"http://localhost:8080/reset"`
	AllowSignUp    bool          `json:"allow_sign_up" yaml:"allow_sign_up" env:"AUTH_ALLOW_SIGN_UP" env-default:"true"`
	// RateLimit is the number of auth requests allowed per client per minute.
	// Zero disables limiting.
	RateLimit int `json:"rate_limit" yaml:"rate_limit" env:"AUTH_RATE_LIMIT" env-default:"20"`
}

// OpenAIOptions configures the vision and image generation provider.
// Azure settings take precedence when AzureEndpoint is set.
type OpenAIOptions struct {
	APIKey           string `json:"api_key" yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL          string `json:"base_url" yaml:"base_url" env:"OPENAI_BASE_URL"`
	VisionModel      string `json:"vision_model" yaml:"vision_model" env:"OPENAI_VISION_MODEL" env-default:"gpt-4o"`
	ImageModel       string `json:"image_model" yaml:"image_model" env:"OPENAI_IMAGE_MODEL" env-default:"dall-e-3"`
	AzureKey         string `json:"azure_key" yaml:"azure_key" env:"AZURE_OPENAI_KEY"`
	AzureEndpoint    string `json:"azure_endpoint" yaml:"azure_endpoint" env:"AZURE_OPENAI_ENDPOINT"`
	AzureAPIVersion  string `json:"azure_api_version" yaml:"azure_api_version" env:"AZURE_OPENAI_API_VERSION" env-default:"2024-02-01"`
	DalleDeployment  string `json:"dalle_deployment" yaml:"dalle_deployment" env:"AZURE_OPENAI_DALLE_DEPLOYMENT" env-default:"dall-e-3"`
	VisionDeployment string `json:"vision_deployment" yaml:"vision_deployment" env:"AZURE_OPENAI_VISION_DEPLOYMENT" env-default:"gpt-4o"`
}

// Configured reports whether any provider credentials are present.
func (o OpenAIOptions) Configured() bool {
	if o.AzureEndpoint != "" {
		return o.AzureKey != ""
	}
	return o.APIKey != ""
}

// StorageOptions configures the S3-compatible bucket uploads are archived in.
type StorageOptions struct {
	Endpoint   string        `json:"endpoint" yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey  string        `json:"access_key" yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey  string        `json:"secret_key" yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket     string        `json:"bucket" yaml:"bucket" env:"MINIO_BUCKET" env-default:"pictag-uploads"`
	Region     string        `json:"region" yaml:"region" env:"MINIO_REGION" env-default:"us-east-1"`
	UseSSL     bool          `json:"use_ssl" yaml:"use_ssl" env:"MINIO_USE_SSL"`
	PresignTTL time.Duration `json:"presign_ttl" yaml:"presign_ttl" env:"MINIO_PRESIGN_TTL" env-default:"24h"`
}

// GoogleOptions configures the Google OAuth sign-in provider.
type GoogleOptions struct {
	ClientID     string `json:"client_id" yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `json:"client_secret" yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `json:"redirect_uri" yaml:"redirect_uri" env:"GOOGLE_REDIRECT_URI" env-default:"urn:ietf:wg:oauth:2.0:oob"`
}

// SMTPOptions configures delivery of password reset mails. Without Addr the
// reset links are written to the server log.
type SMTPOptions struct {
	Addr     string `json:"addr" yaml:"addr" env:"SMTP_ADDR"`
	Username string `json:"username" yaml:"username" env:"SMTP_USERNAME"`
	Password string `json:"password" yaml:"password" env:"SMTP_PASSWORD"`
	From     string `json:"from" yaml:"from" env:"SMTP_FROM" env-default:"no-reply@pictag.local"`
}

// Parse reads the configuration from os.Args. It exits on error, like the
// rest of the startup path.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// Load builds Options from the given command-line arguments, the CONFIG
// environment variable, the config file and the environment.
// Precedence: flags > env > file > defaults.
func Load(args []string) (*Options, error) {
	fs := flag.NewFlagSet("pictag-server", flag.ContinueOnError)
	var addr, dsn, path string
	fs.StringVar(&addr, "a", "", "run on ip:port server")
	fs.StringVar(&dsn, "d", "", "db address")
	fs.StringVar(&path, "config", "config.json", "path to config file")
	fs.StringVar(&path, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	options := &Options{Config: cmp.Or(os.Getenv("CONFIG"), path)}
	if _, err := os.Stat(options.Config); err == nil {
		if err := cleanenv.ReadConfig(options.Config, options); err != nil {
			return nil, fmt.Errorf("error while reading config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(options); err != nil {
		return nil, fmt.Errorf("error while reading environment: %w", err)
	}

	if addr != "" {
		options.Port = addr
	}
	if dsn != "" {
		options.DatabaseDSN = dsn
	}
	return options, nil
}

// Check is one line of the configuration presence report.
type Check struct {
	Name string
	Set  bool
}

// Report lists the settings an operator must provide and whether each is present.
func (o *Options) Report() []Check {
	return []Check{
		{"DATABASE_DSN", o.DatabaseDSN != ""},
		{"SIGNING_KEY_PATH", o.Auth.SigningKeyPath != ""},
		{"OPENAI_API_KEY", o.OpenAI.APIKey != ""},
		{"AZURE_OPENAI_KEY", o.OpenAI.AzureKey != ""},
		{"AZURE_OPENAI_ENDPOINT", o.OpenAI.AzureEndpoint != ""},
		{"AZURE_OPENAI_DALLE_DEPLOYMENT", o.OpenAI.DalleDeployment != ""},
		{"AZURE_OPENAI_API_VERSION", o.OpenAI.AzureAPIVersion != ""},
		{"MINIO_ENDPOINT", o.Storage.Endpoint != ""},
		{"GOOGLE_CLIENT_ID", o.Google.ClientID != ""},
		{"SMTP_ADDR", o.SMTP.Addr != ""},
	}
}
