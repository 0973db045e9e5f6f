package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Slot     SlotConfig
	MQ       MQConfig
	NoShow   NoShowConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

// SlotConfig drives auto-slot allocation: slots start at DayStart, last
// LengthMinutes, and at most MaxPerDay are handed out (0 = until midnight).
type SlotConfig struct {
	DayStart      string
	LengthMinutes int
	MaxPerDay     int
}

type MQConfig struct {
	URL      string
	Exchange string
}

type NoShowConfig struct {
	GraceMinutes int
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "clinic-booking")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("SLOT_DAY_START", "09:00")
	v.SetDefault("SLOT_LENGTH_MINUTES", 30)
	v.SetDefault("SLOT_MAX_PER_DAY", 16)
	v.SetDefault("MQ_EXCHANGE", "clinic.events")
	v.SetDefault("NO_SHOW_GRACE_MINUTES", 60)

	config := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Port:        v.GetString("PORT"),
			Debug:       v.GetBool("DEBUG"),
			LogPath:     v.GetString("LOG_PATH"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Slot: SlotConfig{
			DayStart:      v.GetString("SLOT_DAY_START"),
			LengthMinutes: v.GetInt("SLOT_LENGTH_MINUTES"),
			MaxPerDay:     v.GetInt("SLOT_MAX_PER_DAY"),
		},
		MQ: MQConfig{
			URL:      v.GetString("MQ_URL"),
			Exchange: v.GetString("MQ_EXCHANGE"),
		},
		NoShow: NoShowConfig{
			GraceMinutes: v.GetInt("NO_SHOW_GRACE_MINUTES"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if _, err := time.Parse("15:04", c.Slot.DayStart); err != nil {
		return fmt.Errorf("SLOT_DAY_START must be HH:MM, got %q", c.Slot.DayStart)
	}
	if c.Slot.LengthMinutes <= 0 || c.Slot.LengthMinutes > 24*60 {
		return fmt.Errorf("SLOT_LENGTH_MINUTES must be between 1 and 1440, got %d", c.Slot.LengthMinutes)
	}
	if c.Slot.MaxPerDay < 0 {
		return fmt.Errorf("SLOT_MAX_PER_DAY must not be negative, got %d", c.Slot.MaxPerDay)
	}
	if c.NoShow.GraceMinutes < 0 {
		return fmt.Errorf("NO_SHOW_GRACE_MINUTES must not be negative, got %d", c.NoShow.GraceMinutes)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
