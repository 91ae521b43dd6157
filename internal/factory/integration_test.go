package factory

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/dicemeister/internal/config"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/protocol"
	"github.com/mcoot/dicemeister/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	addr   string
	cancel context.CancelFunc
	served chan error
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.start()
}

func (s *IntegrationSuite) start(opts ...func(*config.Config)) {
	s.app = NewTestApp(opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.addr = ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.served = make(chan error, 1)
	go func() { s.served <- s.app.Serve(ctx, ln, nil) }()
}

func (s *IntegrationSuite) TearDownTest() {
	s.cancel()
	select {
	case err := <-s.served:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.app.Close(ctx))
}

func (s *IntegrationSuite) dial() *testutil.Player {
	conn, err := protocol.DialTCP(context.Background(), s.addr)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return testutil.NewPlayer(s.T(), conn)
}

// register signs up over TCP and acks the queue notification,
// returning the issued token
func (s *IntegrationSuite) register(username string) (*testutil.Player, string) {
	p := s.dial()
	p.Answer(protocol.TypeOption, "2")
	p.Answer(protocol.TypeUsername, username)
	p.Answer(protocol.TypePassword, "pw-"+username)
	_, token, _ := strings.Cut(p.Ack(protocol.TypeAuth), "\n")
	s.Equal("You entered in waiting queue with ranking  0 points.", p.Ack(protocol.TypeQueue))
	return p, token
}

// play scripts one seat through every round and the result lines
func play(p *testutil.Player, self, seats, rounds int) (results []string) {
	p.Ack(protocol.TypeInfo)
	for round := 0; round < rounds; round++ {
		for turn := 0; turn < seats; turn++ {
			p.Ack(protocol.TypeScore)
			if turn == self {
				p.Answer(protocol.TypeTurn, "x")
			} else {
				p.Ack(protocol.TypeInfo)
			}
		}
	}
	for i := 0; i < seats; i++ {
		results = append(results, p.Ack(protocol.TypeInfo))
	}
	return results
}

func (s *IntegrationSuite) eventually(cond func() bool, msg string) {
	s.Require().Eventually(cond, 5*time.Second, 10*time.Millisecond, msg)
}

func (s *IntegrationSuite) TestTwoPlayersPlayAndRequeue() {
	s.app.MockRandom.QueueRolls(5, 3, 4, 10)

	alice, _ := s.register("alice")
	bob, _ := s.register("bob")

	var wg sync.WaitGroup
	var aliceOver, bobOver, bobFin string
	wg.Add(2)
	go func() {
		defer wg.Done()
		play(alice, 0, 2, 2)
		aliceOver = alice.Answer(protocol.TypeGameOver, "y")
		alice.Ack(protocol.TypeQueue)
	}()
	go func() {
		defer wg.Done()
		play(bob, 1, 2, 2)
		bobOver = bob.Answer(protocol.TypeGameOver, "N")
		bobFin = bob.Expect(protocol.TypeFin)
		bob.ExpectClosed()
	}()
	wg.Wait()

	s.Equal("bob won with 13 points!", aliceOver)
	s.Equal(aliceOver, bobOver)
	s.Equal("Connection close", bobFin)

	s.eventually(func() bool { return s.app.Queue.Len() == 1 }, "alice requeued")
	s.eventually(func() bool { return len(s.app.Games.Active()) == 0 }, "game finished")

	board, err := s.app.Ranking.Leaderboard(context.Background())
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal(int64(13), board[0].Rank)
	s.Equal(int64(13), board[1].Rank)

	rec, err := s.app.Storage.GetUser(context.Background(), "bob")
	s.Require().NoError(err)
	s.Empty(rec.Token)
}

func (s *IntegrationSuite) TestReconnectReplacesQueuedConnection() {
	first, token := s.register("alice")

	p := s.dial()
	p.Answer(protocol.TypeOption, "3")
	p.Answer(protocol.TypeToken, token)
	p.Ack(protocol.TypeAuth)
	s.Equal("You are already in the waiting queue with 0 points.", p.Ack(protocol.TypeQueue))

	first.ExpectClosed()
	s.Equal(1, s.app.Queue.Len())
}

func (s *IntegrationSuite) TestStatusTracksQueue() {
	s.register("alice")

	status, err := s.app.Monitor.Status(context.Background())
	s.Require().NoError(err)
	s.Equal(model.ModeFIFO, status.Mode)
	s.Equal(1, status.QueueSize)
	s.Equal([]string{"alice"}, status.Queued)
	s.Equal(0, status.ActiveGames)
}

func (s *IntegrationSuite) TestRankModeWaitsForSlack() {
	s.TearDownTest()
	s.start(func(c *config.Config) { c.Match.Mode = "rank" })

	ctx := context.Background()
	_, err := s.app.Ranking.Register(ctx, "alice", "pw-alice", "")
	s.Require().NoError(err)
	s.Require().NoError(s.app.Ranking.UpdateRank(ctx, "alice", 20))

	alice := s.dial()
	alice.Answer(protocol.TypeOption, "1")
	alice.Answer(protocol.TypeUsername, "alice")
	alice.Answer(protocol.TypePassword, "pw-alice")
	alice.Ack(protocol.TypeAuth)
	s.Equal("You entered in waiting queue with ranking  20 points.", alice.Ack(protocol.TypeQueue))

	bob, _ := s.register("bob")

	time.Sleep(50 * time.Millisecond)
	s.Equal(2, s.app.Queue.Len(), "a spread of 20 exceeds a fresh slack")

	s.app.MockClock.Advance(20 * time.Second)

	// Sorted by rank, bob throws first
	var wg sync.WaitGroup
	wg.Add(2)
	for seat, p := range []*testutil.Player{bob, alice} {
		go func() {
			defer wg.Done()
			play(p, seat, 2, 2)
			p.Answer(protocol.TypeGameOver, "N")
			p.Expect(protocol.TypeFin)
		}()
	}
	wg.Wait()

	s.Equal(0, s.app.Queue.Len())
}
