package errors

import (
	stderrors "errors"
	"fmt"
)

// Общие ошибки, используемые во всем проекте
var (
	ErrInvalidSSHConfig = fmt.Errorf("некорректная конфигурация SSH")
	ErrUnknownCommand   = fmt.Errorf("команда не указана")
	ErrNotDirectory     = fmt.Errorf("путь не является директорией")
	ErrSessionClosed    = fmt.Errorf("SFTP сессия закрыта")
)

// Kind классифицирует ошибку загрузки
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindConnection
	KindAuthentication
	KindProtocol
	KindRemoteNavigation
	KindLocalIO
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindProtocol:
		return "protocol"
	case KindRemoteNavigation:
		return "remote navigation"
	case KindLocalIO:
		return "local io"
	case KindTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// UploadError возникает на любом шаге загрузки файла.
// Kind определяет шаг, Err хранит исходную причину.
type UploadError struct {
	Kind   Kind
	Server string
	Path   string
	Err    error
}

func (e *UploadError) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidArgument:
		msg = fmt.Sprintf("некорректный аргумент %q", e.Path)
	case KindConnection:
		msg = fmt.Sprintf("ошибка подключения к серверу %q", e.Server)
	case KindAuthentication:
		msg = fmt.Sprintf("ошибка аутентификации на сервере %q", e.Server)
	case KindProtocol:
		msg = fmt.Sprintf("ошибка протокола SSH/SFTP с сервером %q", e.Server)
	case KindRemoteNavigation:
		msg = fmt.Sprintf("ошибка перехода в удалённую директорию %q", e.Path)
	case KindLocalIO:
		msg = fmt.Sprintf("ошибка чтения локального файла %q", e.Path)
	case KindTransfer:
		msg = fmt.Sprintf("ошибка передачи файла %q", e.Path)
	default:
		msg = fmt.Sprintf("ошибка загрузки (%s)", e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// KindOf возвращает вид первой UploadError в цепочке err
func KindOf(err error) (Kind, bool) {
	var ue *UploadError
	if stderrors.As(err, &ue) {
		return ue.Kind, true
	}
	return 0, false
}

// IsKind сообщает, содержит ли цепочка err UploadError вида kind
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// NewInvalidArgumentError создает ошибку некорректного аргумента
func NewInvalidArgumentError(path string, err error) error {
	return &UploadError{Kind: KindInvalidArgument, Path: path, Err: err}
}

// NewConnectionError создает ошибку сетевого подключения
func NewConnectionError(server string, err error) error {
	return &UploadError{Kind: KindConnection, Server: server, Err: err}
}

// NewAuthenticationError создает ошибку отклонённых учётных данных
func NewAuthenticationError(server string, err error) error {
	return &UploadError{Kind: KindAuthentication, Server: server, Err: err}
}

// NewProtocolError создает ошибку согласования SSH или SFTP
func NewProtocolError(server string, err error) error {
	return &UploadError{Kind: KindProtocol, Server: server, Err: err}
}

// NewRemoteNavigationError создает ошибку смены удалённой директории
func NewRemoteNavigationError(server, dir string, err error) error {
	return &UploadError{Kind: KindRemoteNavigation, Server: server, Path: dir, Err: err}
}

// NewLocalIOError создает ошибку чтения локального файла
func NewLocalIOError(path string, err error) error {
	return &UploadError{Kind: KindLocalIO, Path: path, Err: err}
}

// NewTransferError создает ошибку записи удалённого файла
func NewTransferError(server, target string, err error) error {
	return &UploadError{Kind: KindTransfer, Server: server, Path: target, Err: err}
}

// UnknownCommandError возникает при вводе неизвестной команды
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("неизвестная команда: %s", e.Command)
}

// ConfigError возникает при ошибках загрузки профиля загрузки
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ошибка загрузки конфигурации %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создает новую ошибку конфигурации
func NewConfigError(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}

// VersionError возникает при ошибках проверки версии
type VersionError struct {
	Version    string
	Constraint string
	Err        error
}

func (e *VersionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("версия %q не удовлетворяет условию %q", e.Version, e.Constraint)
	}
	return fmt.Sprintf("ошибка проверки версии %q по условию %q: %v", e.Version, e.Constraint, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// NewVersionError создает новую ошибку проверки версии
func NewVersionError(version, constraint string, err error) error {
	return &VersionError{Version: version, Constraint: constraint, Err: err}
}
