package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store kinds accepted by ServerConfig.Store.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreFile     = "file"
)

const (
	DefaultAdminLogin = "can"
	DefaultAdminPass  = "29081623"
)

type ServerConfig struct {
	Addr        string `json:"addr"`
	Store       string `json:"store"`
	DBPath      string `json:"db_path"`
	DatabaseURL string `json:"database_url"`
	DataFile    string `json:"data_file"`
	StaticDir   string `json:"static_dir"`
	APIPrefix   string `json:"api_prefix"`
	AdminLogin  string `json:"admin_login"`
	AdminPass   string `json:"admin_pass"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:       ":5500",
		Store:      StoreSQLite,
		DBPath:     "./data/serre.db",
		DataFile:   "./data.json",
		StaticDir:  "./public",
		APIPrefix:  "/api",
		AdminLogin: DefaultAdminLogin,
		AdminPass:  DefaultAdminPass,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// LoadServerConfig layers defaults, the optional JSON file at path, a local
// .env file and the process environment, in that order.
func LoadServerConfig(path string) (*ServerConfig, error) {
	c := DefaultServerConfig()
	storeFromFile := false

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		var explicit struct {
			Store *string `json:"store"`
		}
		_ = json.Unmarshal(b, &explicit)
		storeFromFile = explicit.Store != nil
	}

	if err := loadEnvIfExists(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnv(storeFromFile)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnv overlays the environment. A postgres DATABASE_URL selects the
// postgres store unless a store was chosen explicitly.
func (c *ServerConfig) applyEnv(storeChosen bool) {
	// Hosting platforms hand out a bare PORT; SERRE_ADDR wins when both are set.
	if port := getEnv("PORT", ""); port != "" {
		c.Addr = ":" + port
	}
	c.Addr = getEnv("SERRE_ADDR", c.Addr)
	c.Store = getEnv("SERRE_STORE", c.Store)
	c.DBPath = getEnv("SERRE_DB_PATH", c.DBPath)
	c.DataFile = getEnv("SERRE_DATA_FILE", c.DataFile)
	c.StaticDir = getEnv("SERRE_STATIC_DIR", c.StaticDir)
	c.APIPrefix = getEnv("SERRE_API_PREFIX", c.APIPrefix)
	c.AdminLogin = getEnv("SERRE_ADMIN_LOGIN", c.AdminLogin)
	c.AdminPass = getEnv("SERRE_ADMIN_PASS", c.AdminPass)
	c.LogLevel = getEnv("SERRE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("SERRE_LOG_FORMAT", c.LogFormat)

	if url := getEnv("DATABASE_URL", ""); url != "" {
		c.DatabaseURL = url
		if IsPostgresURL(url) && !storeChosen && os.Getenv("SERRE_STORE") == "" {
			c.Store = StorePostgres
		}
	}
}

func (c *ServerConfig) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite store needs a db path")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("postgres store needs DATABASE_URL")
		}
	case StoreFile:
		if c.DataFile == "" {
			return errors.New("file store needs a data file")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite, postgres or file)", c.Store)
	}
	if c.AdminLogin == "" || c.AdminPass == "" {
		return errors.New("admin login and password must not be empty")
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		c.APIPrefix = "/" + c.APIPrefix
	}
	c.APIPrefix = strings.TrimRight(c.APIPrefix, "/")
	return nil
}

// UsesDefaultAdmin reports whether the built-in administrator password is
// still in effect.
func (c *ServerConfig) UsesDefaultAdmin() bool {
	return c.AdminPass == DefaultAdminPass
}

func IsPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func loadEnvIfExists() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}
