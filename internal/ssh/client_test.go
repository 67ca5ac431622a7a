package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"sftpup/internal/errors"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// newMemSession соединяет SSHClient с SFTP сервером в памяти
func newMemSession(t *testing.T) (*SSHClient, *sftp.Client) {
	t.Helper()

	c1, c2 := net.Pipe()
	server := sftp.NewRequestServer(c1, sftp.InMemHandler())
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(c2, c2)
	require.NoError(t, err)

	s := NewSFTPSession("mem", nil, client)
	t.Cleanup(func() { s.Close() })
	return s, client
}

func writeRemote(t *testing.T, s Session, name string, data []byte) {
	t.Helper()
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestSessionChdir(t *testing.T) {
	s, raw := newMemSession(t)
	require.NoError(t, raw.Mkdir("/incoming"))
	f, err := raw.Create("/plain.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tests := []struct {
		name    string
		dir     string
		wantErr error
		wantCwd string
	}{
		{name: "существующая директория", dir: "/incoming/", wantCwd: "/incoming"},
		{name: "относительный путь", dir: "..", wantCwd: "/"},
		{name: "нет директории", dir: "/no-such-dir/", wantErr: os.ErrNotExist, wantCwd: "/"},
		{name: "путь указывает на файл", dir: "/plain.txt", wantErr: errors.ErrNotDirectory, wantCwd: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Chdir(tt.dir)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCwd, s.Getwd())
		})
	}
}

func TestSessionCreateAndExists(t *testing.T) {
	s, raw := newMemSession(t)
	require.NoError(t, raw.Mkdir("/incoming"))
	require.NoError(t, s.Chdir("/incoming/"))

	writeRemote(t, s, "report.csv", []byte("a,b,c\n1,2,3\n"))

	ok, err := s.Exists("/incoming/report.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists("report.csv")
	require.NoError(t, err)
	assert.True(t, ok, "относительный путь разрешается от текущей директории")

	ok, err = s.Exists("/incoming/missing.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := raw.Open("/incoming/report.csv")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n1,2,3\n", string(data))
}

func TestSessionClosed(t *testing.T) {
	s, _ := newMemSession(t)

	first := s.Close()
	assert.Equal(t, first, s.Close())

	assert.ErrorIs(t, s.Chdir("/"), errors.ErrSessionClosed)
	_, err := s.Create("a")
	assert.ErrorIs(t, err, errors.ErrSessionClosed)
	_, err = s.Exists("a")
	assert.ErrorIs(t, err, errors.ErrSessionClosed)
}

func TestDialUpload(t *testing.T) {
	srv := startTestServer(t)
	dir := t.TempDir()

	client, err := Dial(srv.info(testPassword), WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Chdir(dir))
	writeRemote(t, client, "report.csv", []byte("payload"))

	ok, err := client.Exists(dir + "/report.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	err = client.Chdir(filepath.Join(dir, "no-such-dir"))
	assert.True(t, stderrors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestDialErrors(t *testing.T) {
	srv := startTestServer(t)
	addr := net.JoinHostPort(srv.host, strconv.Itoa(srv.port))

	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(otherKey)
	require.NoError(t, err)

	knownHostsFile := func(t *testing.T, key ssh.PublicKey) string {
		path := filepath.Join(t.TempDir(), "known_hosts")
		line := knownhosts.Line([]string{addr}, key)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))
		return path
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	tests := []struct {
		name string
		info ConnectionInfo
		opts func(t *testing.T) []DialOption
		kind errors.Kind
	}{
		{
			name: "неверный пароль",
			info: srv.info("wrong"),
			kind: errors.KindAuthentication,
		},
		{
			name: "соединение отклонено",
			info: ConnectionInfo{Host: "127.0.0.1", Port: closedPort, Username: testUser, Password: testPassword},
			kind: errors.KindConnection,
		},
		{
			name: "ключ сервера не совпадает",
			info: srv.info(testPassword),
			opts: func(t *testing.T) []DialOption {
				return []DialOption{WithKnownHosts(knownHostsFile(t, otherSigner.PublicKey()))}
			},
			kind: errors.KindProtocol,
		},
		{
			name: "нет файла known_hosts",
			info: srv.info(testPassword),
			opts: func(t *testing.T) []DialOption {
				return []DialOption{WithKnownHosts(filepath.Join(t.TempDir(), "missing"))}
			},
			kind: errors.KindInvalidArgument,
		},
		{
			name: "некорректный таймаут",
			info: srv.info(testPassword),
			opts: func(t *testing.T) []DialOption {
				return []DialOption{WithTimeout(0)}
			},
			kind: errors.KindInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []DialOption{WithTimeout(5 * time.Second)}
			if tt.opts != nil {
				opts = append(opts, tt.opts(t)...)
			}

			client, err := Dial(tt.info, opts...)
			require.Error(t, err)
			assert.Nil(t, client)
			kind, ok := errors.KindOf(err)
			require.True(t, ok, "ошибка без вида: %v", err)
			assert.Equal(t, tt.kind, kind, "ошибка: %v", err)
		})
	}
}

func TestDialKnownHostsMatch(t *testing.T) {
	srv := startTestServer(t)
	addr := net.JoinHostPort(srv.host, strconv.Itoa(srv.port))

	path := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(path, []byte(knownhosts.Line([]string{addr}, srv.hostKey)+"\n"), 0600))

	session, err := NewDialer(WithKnownHosts(path), WithTimeout(5*time.Second))(srv.info(testPassword))
	require.NoError(t, err)
	require.NoError(t, session.Close())
}

func TestClassifyHandshakeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errors.Kind
	}{
		{
			name: "аутентификация",
			err:  fmt.Errorf("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain"),
			kind: errors.KindAuthentication,
		},
		{
			name: "таймаут",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded},
			kind: errors.KindConnection,
		},
		{
			name: "рукопожатие",
			err:  fmt.Errorf("ssh: handshake failed: EOF"),
			kind: errors.KindProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyHandshakeError("host:22", tt.err)
			assert.True(t, errors.IsKind(err, tt.kind), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
