package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const Name = "minipub"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host     string
		HttpPort int    `yaml:"httpPort"`
		Domain   string `yaml:"domain"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DataDir  string `yaml:"dataDir"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	var buf []byte
	var err error

	buf, err = os.ReadFile(ConfigFileName)
	if err != nil {
		log.Printf("Config file not found at %s, using embedded defaults", ConfigFileName)
		buf = embeddedConfig
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("MINIPUB_HOST")
	envHttpPort := os.Getenv("MINIPUB_HTTPPORT")
	envDomain := os.Getenv("MINIPUB_DOMAIN")
	envUsername := os.Getenv("MINIPUB_USERNAME")
	envPassword := os.Getenv("MINIPUB_PASSWORD")
	envDataDir := os.Getenv("MINIPUB_DATADIR")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envDomain != "" {
		c.Conf.Domain = envDomain
	}

	if envUsername != "" {
		c.Conf.Username = envUsername
	}

	if envPassword != "" {
		c.Conf.Password = envPassword
	}

	if envDataDir != "" {
		c.Conf.DataDir = envDataDir
	}

	return c, nil
}
