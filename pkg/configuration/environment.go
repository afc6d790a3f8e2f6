package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ecodex-io/ecodex/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"ecodex"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type HierarchyOptions struct {
	// Defaults applied when the CLI flags are not set.
	IDStrategy     string `env:"HIERARCHY_ID_STRATEGY" envDefault:"hash"`
	IncompleteRows string `env:"HIERARCHY_INCOMPLETE_ROWS" envDefault:"error"`
}

type Configuration struct {
	Database  DatabaseOptions
	Hierarchy HierarchyOptions

	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Hierarchy.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (h *HierarchyOptions) validate() error {
	switch h.IDStrategy {
	case "hash", "sequence", "external":
	default:
		return fmt.Errorf("invalid HIERARCHY_ID_STRATEGY=%q (expected hash|sequence|external)", h.IDStrategy)
	}
	switch h.IncompleteRows {
	case "error", "skip", "fill_unknown":
	default:
		return fmt.Errorf("invalid HIERARCHY_INCOMPLETE_ROWS=%q (expected error|skip|fill_unknown)", h.IncompleteRows)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
