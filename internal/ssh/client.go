package ssh

import (
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"sftpup/internal/errors"
	"sftpup/internal/logger"
	"sftpup/internal/utils"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultTimeout = 30 * time.Second

type DialOption func(*dialConfig) error

type dialConfig struct {
	timeout        time.Duration
	knownHostsPath string
	log            logger.LoggerInterface
}

func newDialConfig(opts ...DialOption) (*dialConfig, error) {
	cfg := &dialConfig{
		timeout: defaultTimeout,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithTimeout задает таймаут TCP подключения и SSH рукопожатия
func WithTimeout(timeout time.Duration) DialOption {
	return func(cfg *dialConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be >0")
		}
		cfg.timeout = timeout
		return nil
	}
}

// WithKnownHosts включает проверку ключа сервера по файлу known_hosts
func WithKnownHosts(path string) DialOption {
	return func(cfg *dialConfig) error {
		if path == "" {
			return fmt.Errorf("known_hosts path cannot be empty")
		}
		cfg.knownHostsPath = path
		return nil
	}
}

func WithLogger(log logger.LoggerInterface) DialOption {
	return func(cfg *dialConfig) error {
		if log != nil {
			cfg.log = log
		}
		return nil
	}
}

func (cfg *dialConfig) clientConfig(info ConnectionInfo) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.knownHostsPath != "" {
		cb, err := knownhosts.New(cfg.knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	password := info.Password
	return &ssh.ClientConfig{
		User: info.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.timeout,
	}, nil
}

// SSHClient реализует Session поверх SSH соединения и SFTP подсистемы
type SSHClient struct {
	server    string
	sshClient io.Closer
	sftp      *sftp.Client
	cwd       string

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

var _ Session = (*SSHClient)(nil)

// NewDialer возвращает Dialer, открывающий SSHClient с заданными опциями
func NewDialer(opts ...DialOption) Dialer {
	return func(info ConnectionInfo) (Session, error) {
		client, err := Dial(info, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Dial подключается к серверу, проходит аутентификацию по паролю
// и открывает SFTP подсистему. Ошибки классифицируются по видам
// errors.KindConnection, errors.KindAuthentication и errors.KindProtocol.
func Dial(info ConnectionInfo, opts ...DialOption) (*SSHClient, error) {
	addr := net.JoinHostPort(info.Host, strconv.Itoa(info.Port))

	cfg, err := newDialConfig(opts...)
	if err != nil {
		return nil, errors.NewInvalidArgumentError(addr, err)
	}

	clientCfg, err := cfg.clientConfig(info)
	if err != nil {
		return nil, errors.NewInvalidArgumentError(cfg.knownHostsPath, err)
	}

	cfg.log.Debug("Подключение к серверу", "адрес", addr, "пользователь", info.Username)
	conn, err := net.DialTimeout("tcp", addr, cfg.timeout)
	if err != nil {
		return nil, errors.NewConnectionError(addr, err)
	}

	if err := conn.SetDeadline(time.Now().Add(cfg.timeout)); err != nil {
		conn.Close()
		return nil, errors.NewConnectionError(addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, classifyHandshakeError(addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, errors.NewConnectionError(addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	cfg.log.Debug("SSH соединение установлено", "адрес", addr, "сервер", string(sshClient.ServerVersion()))

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, errors.NewProtocolError(addr, fmt.Errorf("request sftp subsystem: %w", err))
	}

	return NewSFTPSession(addr, sshClient, sftpClient), nil
}

// NewSFTPSession оборачивает готовый SFTP клиент. conn закрывается
// вместе с сессией и может быть nil.
func NewSFTPSession(server string, conn io.Closer, sftpClient *sftp.Client) *SSHClient {
	cwd, err := sftpClient.Getwd()
	if err != nil || cwd == "" {
		cwd = "/"
	}
	return &SSHClient{
		server:    server,
		sshClient: conn,
		sftp:      sftpClient,
		cwd:       cwd,
	}
}

// classifyHandshakeError разделяет ошибки рукопожатия на отказ в
// аутентификации, сетевые сбои и ошибки протокола
func classifyHandshakeError(server string, err error) error {
	var netErr net.Error
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"):
		return errors.NewAuthenticationError(server, err)
	case stderrors.As(err, &netErr), strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "connection reset"):
		return errors.NewConnectionError(server, err)
	default:
		return errors.NewProtocolError(server, err)
	}
}

// Server возвращает адрес сервера host:port
func (c *SSHClient) Server() string {
	return c.server
}

// Getwd возвращает текущую удалённую директорию сессии
func (c *SSHClient) Getwd() string {
	return c.cwd
}

// Chdir меняет текущую удалённую директорию. SFTP не хранит рабочую
// директорию на сервере, поэтому она отслеживается на стороне клиента.
func (c *SSHClient) Chdir(dir string) error {
	if err := c.check(); err != nil {
		return err
	}

	target := utils.ResolveRemote(c.cwd, dir)
	info, err := c.sftp.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", target, errors.ErrNotDirectory)
	}

	c.cwd = target
	return nil
}

// Create создает или обрезает удалённый файл name в текущей директории
func (c *SSHClient) Create(name string) (io.WriteCloser, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	target := utils.ResolveRemote(c.cwd, name)
	f, err := c.sftp.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("sftp open file %s: %w", target, err)
	}
	return f, nil
}

// Exists сообщает, существует ли удалённый путь
func (c *SSHClient) Exists(p string) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}

	_, err := c.sftp.Stat(utils.ResolveRemote(c.cwd, p))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("sftp stat %s: %w", p, err)
	}
}

// Close закрывает SFTP клиент и SSH соединение. Повторные вызовы
// возвращают результат первого.
func (c *SSHClient) Close() error {
	c.closeOnce.Do(func() {
		var errs []error

		if c.sftp != nil {
			if err := c.sftp.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		if c.sshClient != nil {
			if err := c.sshClient.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}

		c.closed = true
		if len(errs) > 0 {
			c.closeErr = errs[0]
		}
	})
	return c.closeErr
}

func (c *SSHClient) check() error {
	if c == nil || c.sftp == nil || c.closed {
		return errors.ErrSessionClosed
	}
	return nil
}
