package config

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN         string `yaml:"fqdn"`
	PrivateKey   string `yaml:"privatekey"`
	Registration string `yaml:"registration"` // open, close
	LookupKey    string `yaml:"lookupKey"`    // signingKey, platformAddress

	// ---
	ServerID string
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.NodeInfo.Registration == "" {
		config.NodeInfo.Registration = string(domain.RegistrationOpen)
	}
	if config.NodeInfo.LookupKey == "" {
		config.NodeInfo.LookupKey = string(domain.LookupBySigningKey)
	}
	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}

	serverID, err := scaffold.PrivKeyToAddr(config.NodeInfo.PrivateKey, scaffold.ServerAddrPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("invalid server private key: %w", err)
	}
	config.NodeInfo.ServerID = serverID

	return config, nil
}
