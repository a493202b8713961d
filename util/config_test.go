package util

import (
	"testing"
)

func TestReadConfDefaults(t *testing.T) {
	// No config.yaml in the test working dir, so the embedded defaults apply.
	conf, err := ReadConf()
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	if conf.Conf.HttpPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", conf.Conf.HttpPort)
	}
	if conf.Conf.Domain != "localhost" {
		t.Errorf("Expected default domain localhost, got %s", conf.Conf.Domain)
	}
	if conf.Conf.Username != "admin" {
		t.Errorf("Expected default username admin, got %s", conf.Conf.Username)
	}
	if conf.Conf.DataDir != "./data" {
		t.Errorf("Expected default data dir ./data, got %s", conf.Conf.DataDir)
	}
}

func TestReadConfEnvOverrides(t *testing.T) {
	t.Setenv("MINIPUB_HTTPPORT", "9090")
	t.Setenv("MINIPUB_DOMAIN", "social.example.org")
	t.Setenv("MINIPUB_USERNAME", "alice")
	t.Setenv("MINIPUB_PASSWORD", "secret")
	t.Setenv("MINIPUB_DATADIR", "/tmp/minipub")

	conf, err := ReadConf()
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	if conf.Conf.HttpPort != 9090 {
		t.Errorf("Expected port 9090, got %d", conf.Conf.HttpPort)
	}
	if conf.Conf.Domain != "social.example.org" {
		t.Errorf("Expected domain social.example.org, got %s", conf.Conf.Domain)
	}
	if conf.Conf.Username != "alice" {
		t.Errorf("Expected username alice, got %s", conf.Conf.Username)
	}
	if conf.Conf.Password != "secret" {
		t.Errorf("Expected password override, got %s", conf.Conf.Password)
	}
	if conf.Conf.DataDir != "/tmp/minipub" {
		t.Errorf("Expected data dir /tmp/minipub, got %s", conf.Conf.DataDir)
	}
}
