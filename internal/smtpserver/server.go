// Package smtpserver accepts bounce notifications over SMTP and hands every
// delivered message to the intake pipeline.
package smtpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/bouncecsv/internal/intake"
)

const (
	defaultDomain = "bouncecsv"
)

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

// Acceptor receives one raw message. intake.Intake satisfies it.
type Acceptor interface {
	Accept(ctx context.Context, transport, name string, raw []byte) (bool, error)
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(in *intake.Intake, logger *slog.Logger, addr string, authCfg AuthConfig) *Server {
	return newServer(intakeAcceptor{in}, logger, addr, authCfg)
}

func newServer(acceptor Acceptor, logger *slog.Logger, addr string, authCfg AuthConfig) *Server {
	backend := &backend{
		acceptor:     acceptor,
		logger:       logger,
		authEnabled:  authCfg.Enabled,
		authUsername: authCfg.Username,
		authPassword: authCfg.Password,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = defaultDomain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	server.MaxRecipients = 100
	server.MaxMessageBytes = 25 << 20

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp server listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

// Serve accepts connections on l until Close is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("smtp server listening", "addr", l.Addr().String())
	return s.smtp.Serve(l)
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type intakeAcceptor struct {
	in *intake.Intake
}

func (a intakeAcceptor) Accept(ctx context.Context, transport, name string, raw []byte) (bool, error) {
	_, stored, err := a.in.Accept(ctx, transport, name, raw)
	return stored, err
}

type backend struct {
	acceptor     Acceptor
	logger       *slog.Logger
	authEnabled  bool
	authUsername string
	authPassword string
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	return &session{backend: b, remote: remote}, nil
}

type session struct {
	backend       *backend
	remote        string
	from          string
	to            []string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.authEnabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.authEnabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.authUsername && password == s.backend.authPassword {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

// Mail accepts the null reverse-path used by delivery status notifications.
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = normalizeEmail(from)
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.to = append(s.to, normalizeEmail(to))
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	stored, err := s.backend.acceptor.Accept(context.Background(), intake.TransportSMTP, "", data)
	if err != nil {
		s.backend.logger.Error("store bounce", "error", err, "remote", s.remote)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      fmt.Sprintf("unable to record bounce: %v", err),
		}
	}
	s.backend.logger.Debug("smtp message accepted",
		"from", s.from,
		"to", strings.Join(s.to, ","),
		"size", len(data),
		"stored", stored,
	)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
