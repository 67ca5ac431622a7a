package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "uploader"
	testPassword = "s3cret"
)

type testServer struct {
	host    string
	port    int
	hostKey ssh.PublicKey
}

// startTestServer поднимает SSH сервер на 127.0.0.1 с SFTP подсистемой,
// работающей с локальной файловой системой
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg)
		}
	}()

	return &testServer{
		host:    "127.0.0.1",
		port:    ln.Addr().(*net.TCPAddr).Port,
		hostKey: signer.PublicKey(),
	}
}

func (s *testServer) info(password string) ConnectionInfo {
	return ConnectionInfo{Host: s.host, Port: s.port, Username: testUser, Password: password}
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()

	sc, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			return
		}
		go func(ch ssh.Channel, in <-chan *ssh.Request) {
			for req := range in {
				ok := req.Type == "subsystem" && subsystemName(req.Payload) == "sftp"
				req.Reply(ok, nil)
				if !ok {
					continue
				}
				server, err := sftp.NewServer(ch)
				if err != nil {
					ch.Close()
					return
				}
				go func() {
					server.Serve()
					ch.Close()
				}()
			}
		}(ch, requests)
	}
}

func subsystemName(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if int(n) > len(payload)-4 {
		return ""
	}
	return string(payload[4 : 4+n])
}
