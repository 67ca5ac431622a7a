package ssh

import "io"

// ConnectionInfo содержит параметры подключения к SFTP серверу
type ConnectionInfo struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Session описывает SFTP сессию, которой владеет одна загрузка
type Session interface {
	Chdir(dir string) error
	Create(name string) (io.WriteCloser, error)
	Exists(path string) (bool, error)
	Close() error
}

// Dialer открывает Session по параметрам подключения
type Dialer func(info ConnectionInfo) (Session, error)
