package auth

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/protocol"
	"github.com/mcoot/dicemeister/internal/services/ranking"
	"github.com/mcoot/dicemeister/internal/storage/memory"
	"github.com/mcoot/dicemeister/internal/testutil"
	"github.com/mcoot/dicemeister/internal/workerpool"
)

// recordingAdmitter keeps admitted sessions instead of queueing them
type recordingAdmitter struct {
	mu       sync.Mutex
	sessions []*model.Session
}

func (a *recordingAdmitter) Admit(s *model.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, s)
	return nil
}

func (a *recordingAdmitter) admitted() []*model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.Session(nil), a.sessions...)
}

type GatewaySuite struct {
	suite.Suite
	storage  *memory.Storage
	ranking  *ranking.Service
	admitter *recordingAdmitter
	gateway  *Gateway
	ctx      context.Context
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = memory.New()
	s.ranking = ranking.New(s.storage, ranking.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
	s.admitter = &recordingAdmitter{}
	s.gateway = s.newGateway(DefaultConfig())
}

func (s *GatewaySuite) newGateway(cfg Config) *Gateway {
	return New(
		s.ranking,
		s.admitter,
		NewTokenIssuer(bcrypt.MinCost),
		workerpool.New("auth", 5, testutil.NopLogger()),
		clock.New(),
		cfg,
		testutil.NopLogger(),
	)
}

// connect starts the dialogue on a pipe and returns the scripted client and
// a channel carrying Handle's result
func (s *GatewaySuite) connect(g *Gateway) (*testutil.Player, <-chan error) {
	server, client := testutil.PipeConns(s.T())
	done := make(chan error, 1)
	go func() { done <- g.Handle(s.ctx, server) }()
	return testutil.NewPlayer(s.T(), client), done
}

func (s *GatewaySuite) result(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		s.FailNow("gateway did not finish")
		return nil
	}
}

func (s *GatewaySuite) register(username, password string) string {
	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "2")
	p.Answer(protocol.TypeUsername, username)
	p.Answer(protocol.TypePassword, password)
	auth := p.Ack(protocol.TypeAuth)
	s.Require().NoError(s.result(done))

	_, token, _ := strings.Cut(auth, "\n")
	return token
}

func (s *GatewaySuite) TestRegisterAdmitsNewPlayer() {
	p, done := s.connect(s.gateway)

	s.Equal("1 - Login\n2 - Register\n3 - Reconnect\n4 - Quit", p.Answer(protocol.TypeOption, "2"))
	s.Equal("Username?", p.Answer(protocol.TypeUsername, "alice"))
	s.Equal("Password?", p.Answer(protocol.TypePassword, "secret"))
	auth := p.Ack(protocol.TypeAuth)
	s.Require().NoError(s.result(done))

	name, token, found := strings.Cut(auth, "\n")
	s.Require().True(found)
	s.Equal("token-alice.txt", name)
	s.NotEmpty(token)

	admitted := s.admitter.admitted()
	s.Require().Len(admitted, 1)
	s.Equal("alice", admitted[0].Username)
	s.Equal(int64(0), admitted[0].Rank)
	s.Equal(token, admitted[0].Token)

	rec, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(token, rec.Token)
}

func (s *GatewaySuite) TestRegisterTakenUsernameReturnsToMenu() {
	s.register("alice", "secret")

	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "2")
	p.Answer(protocol.TypeUsername, "alice")
	p.Answer(protocol.TypePassword, "other")
	s.Equal("Username already in use", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "4")
	s.Equal("Connection terminated", p.Expect(protocol.TypeFin))
	p.ExpectClosed()
	s.ErrorIs(s.result(done), model.ErrClientQuit)
	s.Len(s.admitter.admitted(), 1)
}

func (s *GatewaySuite) TestLoginIssuesFreshToken() {
	first := s.register("alice", "secret")

	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "1")
	p.Answer(protocol.TypeUsername, "alice")
	p.Answer(protocol.TypePassword, "secret")
	auth := p.Ack(protocol.TypeAuth)
	s.Require().NoError(s.result(done))

	_, token, _ := strings.Cut(auth, "\n")
	s.NotEqual(first, token)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(token), []byte("alice1")))
}

func (s *GatewaySuite) TestLoginWrongPasswordRefused() {
	s.register("alice", "secret")

	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "1")
	p.Answer(protocol.TypeUsername, "alice")
	p.Answer(protocol.TypePassword, "wrong")
	s.Equal("Wrong username or password", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "1")
	p.Answer(protocol.TypeUsername, "nobody")
	p.Answer(protocol.TypePassword, "secret")
	s.Equal("Wrong username or password", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "4")
	p.Expect(protocol.TypeFin)
	s.ErrorIs(s.result(done), model.ErrClientQuit)
}

func (s *GatewaySuite) TestReconnectWithToken() {
	token := s.register("alice", "secret")

	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "3")
	s.Equal("Token?", p.Answer(protocol.TypeToken, token))
	auth := p.Ack(protocol.TypeAuth)
	s.Require().NoError(s.result(done))

	s.Equal("token-alice.txt\n"+token, auth)
	s.Len(s.admitter.admitted(), 2)
}

func (s *GatewaySuite) TestReconnectInvalidTokenRefused() {
	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "3")
	p.Answer(protocol.TypeToken, "not-a-token")
	s.Equal("Invalid session token", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "3")
	p.Answer(protocol.TypeToken, "")
	s.Equal("Invalid session token", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "4")
	p.Expect(protocol.TypeFin)
	s.ErrorIs(s.result(done), model.ErrClientQuit)
}

func (s *GatewaySuite) TestUnknownOptionRefused() {
	p, done := s.connect(s.gateway)
	p.Answer(protocol.TypeOption, "9")
	s.Equal("Option refused", p.Ack(protocol.TypeNack))

	p.Answer(protocol.TypeOption, "4")
	p.Expect(protocol.TypeFin)
	s.ErrorIs(s.result(done), model.ErrClientQuit)
}

func (s *GatewaySuite) TestBackAbortsAction() {
	p, done := s.connect(s.gateway)

	p.Answer(protocol.TypeOption, "1")
	p.Answer(protocol.TypeUsername, "BACK")

	p.Answer(protocol.TypeOption, "2")
	p.Answer(protocol.TypeUsername, "alice")
	p.Answer(protocol.TypePassword, "BACK")

	p.Answer(protocol.TypeOption, "3")
	p.Answer(protocol.TypeToken, "BACK")

	p.Answer(protocol.TypeOption, "4")
	p.Expect(protocol.TypeFin)
	s.ErrorIs(s.result(done), model.ErrClientQuit)

	_, err := s.storage.GetUser(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *GatewaySuite) TestTimeoutTerminatesDialogue() {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	g := s.newGateway(cfg)

	p, done := s.connect(g)
	p.Expect(protocol.TypeOption)
	// No reply: the read deadline expires

	s.Equal("Connection terminated", p.Expect(protocol.TypeFin))
	p.ExpectClosed()
	s.ErrorIs(s.result(done), model.ErrAuthTimeout)
	s.Empty(s.admitter.admitted())
}

func (s *GatewaySuite) TestTimeoutNotResetByRetries() {
	cfg := DefaultConfig()
	cfg.Timeout = 300 * time.Millisecond
	g := s.newGateway(cfg)

	p, done := s.connect(g)
	for range 3 {
		p.Answer(protocol.TypeOption, "x")
		p.Ack(protocol.TypeNack)
		time.Sleep(50 * time.Millisecond)
	}

	msg, ok := p.Next()
	s.Require().True(ok)
	if msg.Type == protocol.TypeOption {
		msg, ok = p.Next()
		s.Require().True(ok)
	}
	s.Equal(protocol.TypeFin, msg.Type)
	s.ErrorIs(s.result(done), model.ErrAuthTimeout)
}

func (s *GatewaySuite) TestServeAcceptsTCP() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	served := make(chan error, 1)
	go func() { served <- s.gateway.Serve(ctx, ln) }()

	conn, err := protocol.DialTCP(s.ctx, ln.Addr().String())
	s.Require().NoError(err)
	defer conn.Close()

	p := testutil.NewPlayer(s.T(), conn)
	p.Answer(protocol.TypeOption, "2")
	p.Answer(protocol.TypeUsername, "alice")
	p.Answer(protocol.TypePassword, "secret")
	p.Ack(protocol.TypeAuth)

	s.Eventually(func() bool { return len(s.admitter.admitted()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	s.NoError(<-served)
}

func TestTokenIssuerUnique(t *testing.T) {
	issuer := NewTokenIssuer(bcrypt.MinCost)

	var wg sync.WaitGroup
	tokens := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := issuer.NextToken("alice")
			if err != nil {
				t.Error(err)
				return
			}
			tokens <- tok
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for tok := range tokens {
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 tokens, got %d", len(seen))
	}
}
