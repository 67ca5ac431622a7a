// Package uploader загружает один локальный файл на SFTP сервер,
// проверяет наличие загруженного файла и удаляет локальный источник
// только после успешной проверки.
package uploader

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"

	"sftpup/internal/errors"
	"sftpup/internal/logger"
	"sftpup/internal/ssh"
	"sftpup/internal/utils"
)

// BufferSize задает размер блока при передаче файла
const BufferSize = 4096

// Target описывает, что и куда загружается
type Target struct {
	SourcePath     string
	DestinationDir string
	FileName       string
}

// RemotePath возвращает путь, по которому проверяется загруженный файл
func (t Target) RemotePath() string {
	return utils.RemotePath(t.DestinationDir, t.FileName)
}

// Result описывает итог одного вызова Execute
type Result struct {
	// Verified равен true, только если удалённый файл найден после передачи
	Verified   bool
	RemotePath string
	Bytes      int64
	// CleanupErr хранит ошибку удаления локального файла. Она не
	// отменяет успешную загрузку.
	CleanupErr error
}

type Option func(*Uploader)

// WithDialer заменяет способ открытия SFTP сессии
func WithDialer(d ssh.Dialer) Option {
	return func(u *Uploader) {
		if d != nil {
			u.dial = d
		}
	}
}

func WithLogger(log logger.LoggerInterface) Option {
	return func(u *Uploader) {
		if log != nil {
			u.log = log
		}
	}
}

// Uploader владеет одной сессией на время Execute. Экземпляр не
// предназначен для одновременного использования из нескольких горутин.
type Uploader struct {
	info   ssh.ConnectionInfo
	target Target
	dial   ssh.Dialer
	log    logger.LoggerInterface
	remove func(string) error

	success bool
}

// New проверяет, что sourcePath указывает на существующий файл, и
// готовит загрузку. Сетевых обращений не выполняет.
func New(info ssh.ConnectionInfo, sourcePath, destinationDir string, opts ...Option) (*Uploader, error) {
	st, err := os.Stat(sourcePath)
	if err != nil {
		return nil, errors.NewInvalidArgumentError(sourcePath, fmt.Errorf("invalid path or file not found: %w", err))
	}
	if st.IsDir() {
		return nil, errors.NewInvalidArgumentError(sourcePath, fmt.Errorf("source is a directory"))
	}
	if destinationDir == "" {
		return nil, errors.NewInvalidArgumentError(destinationDir, fmt.Errorf("destination directory is required"))
	}
	if info.Host == "" {
		return nil, errors.NewInvalidArgumentError(info.Host, fmt.Errorf("host is required"))
	}

	u := &Uploader{
		info: info,
		target: Target{
			SourcePath:     sourcePath,
			DestinationDir: destinationDir,
			FileName:       utils.FileName(sourcePath),
		},
		dial:   ssh.NewDialer(),
		log:    logger.Discard(),
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Success сообщает результат последней проверки удалённого файла
func (u *Uploader) Success() bool {
	return u.success
}

func (u *Uploader) Target() Target {
	return u.target
}

func (u *Uploader) server() string {
	return net.JoinHostPort(u.info.Host, strconv.Itoa(u.info.Port))
}

// Execute выполняет подключение, переход в директорию назначения,
// передачу файла, проверку и удаление источника. Сессия закрывается
// на любом пути выхода после успешного подключения.
//
// Результат с Verified == false и нулевой ошибкой означает, что передача
// завершилась, но удалённый файл не найден; локальный файл сохраняется.
func (u *Uploader) Execute() (*Result, error) {
	res := &Result{RemotePath: u.target.RemotePath()}
	u.success = false

	u.log.Info("Начало загрузки",
		"файл", u.target.SourcePath,
		"сервер", u.server(),
		"директория", u.target.DestinationDir,
	)

	session, err := u.dial(u.info)
	if err != nil {
		u.log.Error("Ошибка подключения", "сервер", u.server(), "ошибка", err.Error())
		return res, u.wrapDialError(err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			u.log.Warn("Ошибка закрытия сессии", "сервер", u.server(), "ошибка", err.Error())
		}
	}()

	if err := session.Chdir(u.target.DestinationDir); err != nil {
		u.log.Error("Ошибка перехода в удалённую директорию",
			"директория", u.target.DestinationDir,
			"ошибка", err.Error(),
		)
		return res, errors.NewRemoteNavigationError(u.server(), u.target.DestinationDir, err)
	}

	n, err := u.transfer(session)
	res.Bytes = n
	if err != nil {
		return res, err
	}
	u.log.Debug("Передача завершена", "файл", u.target.FileName, "байт", n)

	ok, err := session.Exists(res.RemotePath)
	if err != nil {
		u.log.Error("Ошибка проверки удалённого файла", "путь", res.RemotePath, "ошибка", err.Error())
		return res, errors.NewProtocolError(u.server(), err)
	}
	u.success = ok
	res.Verified = ok

	if !ok {
		u.log.Warn("Удалённый файл не найден после передачи, локальный файл сохранён",
			"путь", res.RemotePath,
			"файл", u.target.SourcePath,
		)
		return res, nil
	}

	if err := u.removeSource(); err != nil {
		res.CleanupErr = err
		u.log.Warn("Не удалось удалить локальный файл", "файл", u.target.SourcePath, "ошибка", err.Error())
	}

	u.log.Info("Загрузка подтверждена",
		"путь", res.RemotePath,
		"байт", n,
	)
	return res, nil
}

// transfer копирует локальный файл в удалённый блоками по BufferSize
func (u *Uploader) transfer(session ssh.Session) (int64, error) {
	src, err := os.Open(u.target.SourcePath)
	if err != nil {
		u.log.Error("Ошибка открытия локального файла", "файл", u.target.SourcePath, "ошибка", err.Error())
		return 0, errors.NewLocalIOError(u.target.SourcePath, err)
	}
	defer src.Close()

	dst, err := session.Create(u.target.FileName)
	if err != nil {
		u.log.Error("Ошибка создания удалённого файла", "файл", u.target.FileName, "ошибка", err.Error())
		return 0, errors.NewTransferError(u.server(), u.target.FileName, err)
	}

	var written int64
	buf := make([]byte, BufferSize)
	for {
		n, rErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				u.log.Error("Ошибка записи удалённого файла", "файл", u.target.FileName, "ошибка", err.Error())
				return written, errors.NewTransferError(u.server(), u.target.FileName, err)
			}
			written += int64(n)
		}
		if rErr != nil {
			if stderrors.Is(rErr, io.EOF) {
				break
			}
			dst.Close()
			u.log.Error("Ошибка чтения локального файла", "файл", u.target.SourcePath, "ошибка", rErr.Error())
			return written, errors.NewLocalIOError(u.target.SourcePath, rErr)
		}
	}

	if err := dst.Close(); err != nil {
		u.log.Error("Ошибка закрытия удалённого файла", "файл", u.target.FileName, "ошибка", err.Error())
		return written, errors.NewTransferError(u.server(), u.target.FileName, err)
	}
	return written, nil
}

func (u *Uploader) removeSource() error {
	err := u.remove(u.target.SourcePath)
	if err == nil || stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// wrapDialError сохраняет вид ошибки транспорта, остальные ошибки
// подключения считаются сетевыми
func (u *Uploader) wrapDialError(err error) error {
	if _, ok := errors.KindOf(err); ok {
		return err
	}
	return errors.NewConnectionError(u.server(), err)
}
