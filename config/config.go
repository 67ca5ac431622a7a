package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sftpup/internal/errors"
	"sftpup/internal/ssh"

	"github.com/kevinburke/ssh_config"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

// Переменные окружения, переопределяющие профиль
const (
	EnvHost       = "SFTPUP_HOST"
	EnvPort       = "SFTPUP_PORT"
	EnvUser       = "SFTPUP_USER"
	EnvPassword   = "SFTPUP_PASSWORD"
	EnvKnownHosts = "SFTPUP_KNOWN_HOSTS"
)

type Connection struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	User       string `json:"user" yaml:"user"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	KnownHosts string `json:"known_hosts,omitempty" yaml:"known_hosts,omitempty"`
	Timeout    string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Upload описывает профиль загрузки одного файла
type Upload struct {
	Requires    string     `json:"requires,omitempty" yaml:"requires,omitempty"`
	Connection  Connection `json:"connection" yaml:"connection"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"`
	Destination string     `json:"destination,omitempty" yaml:"destination,omitempty"`
}

func LoadUploadConfig(path string) (*Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(path, err)
	}

	var upload Upload
	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, &upload)
	} else {
		err = json.Unmarshal(data, &upload)
	}
	if err != nil {
		return nil, errors.NewConfigError(path, err)
	}

	return &upload, nil
}

// ApplyEnv переопределяет параметры подключения непустыми
// переменными окружения
func (u *Upload) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvHost); v != "" {
		u.Connection.Host = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", errors.ErrInvalidSSHConfig, EnvPort, v, err)
		}
		u.Connection.Port = port
	}
	if v := getenv(EnvUser); v != "" {
		u.Connection.User = v
	}
	if v := getenv(EnvPassword); v != "" {
		u.Connection.Password = v
	}
	if v := getenv(EnvKnownHosts); v != "" {
		u.Connection.KnownHosts = v
	}
	return nil
}

// ResolveAlias подставляет HostName, Port и User из клиентского
// конфига OpenSSH, если Host является псевдонимом. Явно заданные
// порт и пользователь не переопределяются.
func (u *Upload) ResolveAlias(r io.Reader) error {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return fmt.Errorf("parse ssh config: %w", err)
	}

	alias := u.Connection.Host
	if alias == "" {
		return nil
	}

	if host, _ := cfg.Get(alias, "HostName"); host != "" {
		u.Connection.Host = host
	}
	if u.Connection.Port == 0 {
		if p, _ := cfg.Get(alias, "Port"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("%w: port %q for host %q", errors.ErrInvalidSSHConfig, p, alias)
			}
			u.Connection.Port = port
		}
	}
	if u.Connection.User == "" {
		if user, _ := cfg.Get(alias, "User"); user != "" {
			u.Connection.User = user
		}
	}
	return nil
}

// Validate проверяет обязательные поля и подставляет значения по умолчанию
func (u *Upload) Validate() error {
	if u.Connection.Port == 0 {
		u.Connection.Port = DefaultPort
	}

	switch {
	case u.Connection.Host == "":
		return fmt.Errorf("%w: host is required", errors.ErrInvalidSSHConfig)
	case u.Connection.Port < 1 || u.Connection.Port > 65535:
		return fmt.Errorf("%w: port must be 1-65535, got %d", errors.ErrInvalidSSHConfig, u.Connection.Port)
	case u.Connection.User == "":
		return fmt.Errorf("%w: user is required", errors.ErrInvalidSSHConfig)
	case u.Source == "":
		return fmt.Errorf("%w: source is required", errors.ErrInvalidSSHConfig)
	case u.Destination == "":
		return fmt.Errorf("%w: destination is required", errors.ErrInvalidSSHConfig)
	}

	if _, err := u.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout возвращает таймаут подключения
func (u *Upload) Timeout() (time.Duration, error) {
	if u.Connection.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(u.Connection.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: timeout %q", errors.ErrInvalidSSHConfig, u.Connection.Timeout)
	}
	return d, nil
}

func (u *Upload) ConnectionInfo() ssh.ConnectionInfo {
	return ssh.ConnectionInfo{
		Host:     u.Connection.Host,
		Port:     u.Connection.Port,
		Username: u.Connection.User,
		Password: u.Connection.Password,
	}
}
