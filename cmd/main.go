package main

import (
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sftpup/config"
	"sftpup/internal/cli"
	"sftpup/internal/errors"
	"sftpup/internal/logger"
	"sftpup/internal/ssh"
	"sftpup/internal/uploader"
	"sftpup/pkg/version"

	"golang.org/x/term"
)

const (
	exitOK          = 0
	exitError       = 1
	exitNotVerified = 2
)

func main() {
	cmd, err := cli.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("Ошибка парсинга команды: %v", err)
	}

	logg := logger.NewLogger(cmd.LogLevel)

	switch cmd.Type {
	case cli.Upload:
		os.Exit(handleUpload(cmd, logg))
	default:
		logg.Error("Неизвестная команда", "команда", cmd.Type)
		os.Exit(exitError)
	}
}

func handleUpload(cmd *cli.ParsedCommand, log logger.LoggerInterface) int {
	profile, err := loadProfile(cmd)
	if err != nil {
		log.Error("Ошибка конфигурации", "ошибка", err.Error())
		return exitError
	}

	timeout, err := profile.Timeout()
	if err != nil {
		log.Error("Ошибка конфигурации", "ошибка", err.Error())
		return exitError
	}

	opts := []ssh.DialOption{ssh.WithTimeout(timeout), ssh.WithLogger(log)}
	if profile.Connection.KnownHosts != "" {
		opts = append(opts, ssh.WithKnownHosts(profile.Connection.KnownHosts))
	}

	up, err := uploader.New(profile.ConnectionInfo(), profile.Source, profile.Destination,
		uploader.WithDialer(ssh.NewDialer(opts...)),
		uploader.WithLogger(log),
	)
	if err != nil {
		log.Error("Ошибка выполнения команды upload", "ошибка", err.Error())
		return exitError
	}

	res, err := up.Execute()
	if err != nil {
		kind, _ := errors.KindOf(err)
		log.Error("Ошибка выполнения команды upload", "вид", kind.String(), "ошибка", err.Error())
		return exitError
	}

	if !res.Verified {
		log.Error("Файл передан, но не найден на сервере", "путь", res.RemotePath)
		return exitNotVerified
	}

	log.Info("Загружено", "файл", profile.Source, "сервер", profile.Connection.Host, "путь", res.RemotePath)
	return exitOK
}

// loadProfile собирает профиль загрузки: файл, затем переменные
// окружения, затем флаги командной строки
func loadProfile(cmd *cli.ParsedCommand) (*config.Upload, error) {
	profile := &config.Upload{}
	if cmd.ConfigPath != "" {
		loaded, err := config.LoadUploadConfig(cmd.ConfigPath)
		if err != nil {
			return nil, err
		}
		profile = loaded
	}

	if err := version.Require(cli.Version, profile.Requires); err != nil {
		return nil, err
	}

	if err := profile.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	applyFlags(profile, cmd)

	if err := resolveAlias(profile, cmd.SSHConfigPath); err != nil {
		return nil, err
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	if profile.Connection.Password == "" {
		password, err := promptPassword(profile.Connection.User, profile.Connection.Host)
		if err != nil {
			return nil, err
		}
		profile.Connection.Password = password
	}

	return profile, nil
}

func applyFlags(profile *config.Upload, cmd *cli.ParsedCommand) {
	if cmd.Host != "" {
		profile.Connection.Host = cmd.Host
	}
	if cmd.Port != 0 {
		profile.Connection.Port = cmd.Port
	}
	if cmd.User != "" {
		profile.Connection.User = cmd.User
	}
	if cmd.KnownHosts != "" {
		profile.Connection.KnownHosts = cmd.KnownHosts
	}
	if cmd.Timeout > 0 {
		profile.Connection.Timeout = cmd.Timeout.String()
	}
	if cmd.Source != "" {
		profile.Source = cmd.Source
	}
	if cmd.Destination != "" {
		profile.Destination = cmd.Destination
	}
}

// resolveAlias читает ~/.ssh/config, если путь не задан явно.
// Отсутствие файла по умолчанию не считается ошибкой.
func resolveAlias(profile *config.Upload, path string) error {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.NewConfigError(path, err)
	}
	defer f.Close()

	if err := profile.ResolveAlias(f); err != nil {
		return errors.NewConfigError(path, err)
	}
	return nil
}

func promptPassword(user, host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: password is required (set %s)", errors.ErrInvalidSSHConfig, config.EnvPassword)
	}

	fmt.Fprintf(os.Stderr, "Пароль для %s@%s: ", user, host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("%w: password is required", errors.ErrInvalidSSHConfig)
	}
	return string(password), nil
}
