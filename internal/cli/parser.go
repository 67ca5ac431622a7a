package cli

import (
	"strings"
	"time"

	"sftpup/internal/errors"

	"github.com/alecthomas/kingpin/v2"
)

// Version версия программы, проверяется по полю requires профиля
const Version = "0.3.0"

type CommandType string

const (
	Upload CommandType = "upload"
)

type ParsedCommand struct {
	Type     CommandType
	LogLevel string

	ConfigPath    string
	SSHConfigPath string
	Host          string
	Port          int
	User          string
	KnownHosts    string
	Timeout       time.Duration
	Source        string
	Destination   string
}

func newApp() *kingpin.Application {
	app := kingpin.New("sftpup", "Загрузка файла на SFTP сервер с проверкой и удалением источника")
	app.Version("sftpup v" + Version)
	app.HelpFlag.Short('h')
	return app
}

func Parse(args []string) (*ParsedCommand, error) {
	app := newApp()

	logLevel := app.Flag("log-level", "Уровень логирования").
		Default("info").
		Enum("debug", "info", "warn", "error")

	uploadCmd := app.Command(string(Upload), "Загрузить файл и удалить его после подтверждения")
	configPath := uploadCmd.Flag("config", "Путь к профилю upload.yaml или upload.json").Short('c').ExistingFile()
	sshConfig := uploadCmd.Flag("ssh-config", "Клиентский конфиг OpenSSH для раскрытия псевдонимов хостов").String()
	host := uploadCmd.Flag("host", "SFTP сервер").Short('H').String()
	port := uploadCmd.Flag("port", "Порт SFTP сервера").Short('P').Int()
	user := uploadCmd.Flag("user", "Имя пользователя").Short('u').String()
	knownHosts := uploadCmd.Flag("known-hosts", "Файл known_hosts для проверки ключа сервера").String()
	timeout := uploadCmd.Flag("timeout", "Таймаут подключения").Duration()
	source := uploadCmd.Arg("source", "Локальный файл").String()
	destination := uploadCmd.Arg("destination", "Удалённая директория").String()

	cmd, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	normalizedLevel := strings.ToLower(*logLevel)

	switch cmd {
	case string(Upload):
		return &ParsedCommand{
			Type:          Upload,
			LogLevel:      normalizedLevel,
			ConfigPath:    *configPath,
			SSHConfigPath: *sshConfig,
			Host:          *host,
			Port:          *port,
			User:          *user,
			KnownHosts:    *knownHosts,
			Timeout:       *timeout,
			Source:        *source,
			Destination:   *destination,
		}, nil
	default:
		if cmd == "" {
			return nil, errors.ErrUnknownCommand
		}
		return nil, &errors.UnknownCommandError{Command: cmd}
	}
}
