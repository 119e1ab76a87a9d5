package config

import (
	"encoding/json"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	NATS       NATSConfig       `json:"nats"`
	Sweep      SweepConfig      `json:"sweep"`
	Commission CommissionConfig `json:"commission"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"dbname"`
	SSLMode        string `json:"sslmode"`
	MigrationsPath string `json:"migrations_path"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type NATSConfig struct {
	URL string `json:"url"`
}

// SweepConfig controls the expiration sweep: how often the scheduler fires,
// how many ended auctions one pass handles, and the shared secret that guards
// the manual trigger endpoint.
type SweepConfig struct {
	IntervalSeconds int    `json:"interval_seconds"`
	PageSize        int    `json:"page_size"`
	Secret          string `json:"secret"`
}

// CommissionConfig seeds the commission_settings row on first boot. After
// that the database record is authoritative; admins change it over HTTP.
type CommissionConfig struct {
	BuyerRate  string `json:"buyer_rate"`
	SellerRate string `json:"seller_rate"`
}

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
