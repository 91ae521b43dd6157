package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/dicemeister/internal/dependencies/mocks"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/protocol"
	"github.com/mcoot/dicemeister/internal/services/queue"
	"github.com/mcoot/dicemeister/internal/services/ranking"
	"github.com/mcoot/dicemeister/internal/storage/memory"
	"github.com/mcoot/dicemeister/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	ranking    *ranking.Service
	queue      *queue.Manager
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = memory.New()
	s.ranking = ranking.New(s.storage, ranking.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
	s.queue = queue.New(testutil.NopLogger())
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.controller = NewController(s.ranking, s.queue, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
}

// seat stores a user and returns their session with a scripted client
func (s *ControllerSuite) seat(username string, rank int64) (*model.Session, *testutil.Player) {
	rec := &model.UserRecord{Username: username, Token: "tok-" + username, Rank: rank}
	s.Require().NoError(s.storage.CreateUser(s.ctx, rec))

	server, client := testutil.PipeConns(s.T())
	return model.NewSession(rec, server), testutil.NewPlayer(s.T(), client)
}

// playRounds scripts one player's side of every round, returning the
// SCORE payloads and the turn announcements it saw
func playRounds(p *testutil.Player, self int, names []string, rounds int) (scores, turns []string) {
	for round := 1; round <= rounds; round++ {
		for turn := range names {
			scores = append(scores, p.Ack(protocol.TypeScore))
			if turn == self {
				p.Answer(protocol.TypeTurn, "r")
				continue
			}
			turns = append(turns, p.Ack(protocol.TypeInfo))
		}
	}
	return scores, turns
}

func (s *ControllerSuite) play(group []*model.Session) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.controller.Play(s.ctx, group)
		close(done)
	}()
	return done
}

func (s *ControllerSuite) wait(done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("game did not finish")
	}
}

func (s *ControllerSuite) TestFullGame() {
	alice, alicePlayer := s.seat("alice", 4)
	bob, bobPlayer := s.seat("bob", 0)
	names := []string{"alice", "bob"}
	s.random.QueueRolls(5, 3, 4, 10)

	done := s.play([]*model.Session{alice, bob})

	var wg sync.WaitGroup
	var aliceScores, bobTurns []string
	var aliceResults, bobResults []string
	var aliceOver, bobOver, bobFin string

	wg.Add(2)
	go func() {
		defer wg.Done()
		p := alicePlayer
		p.Ack(protocol.TypeInfo)
		aliceScores, _ = playRounds(p, 0, names, 2)
		aliceResults = []string{p.Ack(protocol.TypeInfo), p.Ack(protocol.TypeInfo)}
		aliceOver = p.Answer(protocol.TypeGameOver, "Y")
		p.Ack(protocol.TypeQueue)
	}()
	go func() {
		defer wg.Done()
		p := bobPlayer
		p.Ack(protocol.TypeInfo)
		_, bobTurns = playRounds(p, 1, names, 2)
		bobResults = []string{p.Ack(protocol.TypeInfo), p.Ack(protocol.TypeInfo)}
		bobOver = p.Answer(protocol.TypeGameOver, "N")
		bobFin = p.Expect(protocol.TypeFin)
		p.ExpectClosed()
	}()
	wg.Wait()
	s.wait(done)

	s.Require().Len(aliceScores, 4)
	s.Equal("Round: 1\nalice Score: 0\nbob Score: 0\n", aliceScores[0])
	s.Equal("Round: 1\nalice Score: 5\nbob Score: 0\n", aliceScores[1])
	s.Equal("Round: 2\nalice Score: 5\nbob Score: 3\n", aliceScores[2])
	s.Equal("Round: 2\nalice Score: 9\nbob Score: 3\n", aliceScores[3])
	s.Equal([]string{"It's alice turn to throw the dice", "It's alice turn to throw the dice"}, bobTurns)

	expected := []string{"Player alice have 9 points", "Player bob have 13 points"}
	s.Equal(expected, aliceResults)
	s.Equal(expected, bobResults)
	s.Equal("bob won with 13 points!", aliceOver)
	s.Equal(aliceOver, bobOver)
	s.Equal("Connection close", bobFin)

	aliceRec, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(13), aliceRec.Rank)
	bobRec, err := s.storage.GetUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(int64(13), bobRec.Rank)
	s.Equal("", bobRec.Token)
	s.Equal("tok-alice", aliceRec.Token)

	s.Equal(1, s.queue.Len())
	s.Equal(int64(13), alice.Rank)
	s.Empty(s.controller.Active())
}

func (s *ControllerSuite) TestTieGoesToFirstPlayer() {
	alice, alicePlayer := s.seat("alice", 0)
	bob, bobPlayer := s.seat("bob", 0)
	names := []string{"alice", "bob"}
	s.random.QueueRolls(6, 6, 6, 6)

	done := s.play([]*model.Session{alice, bob})

	var over string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		alicePlayer.Ack(protocol.TypeInfo)
		playRounds(alicePlayer, 0, names, 2)
		alicePlayer.Ack(protocol.TypeInfo)
		alicePlayer.Ack(protocol.TypeInfo)
		over = alicePlayer.Answer(protocol.TypeGameOver, "N")
		alicePlayer.Expect(protocol.TypeFin)
	}()
	go func() {
		defer wg.Done()
		bobPlayer.Ack(protocol.TypeInfo)
		playRounds(bobPlayer, 1, names, 2)
		bobPlayer.Ack(protocol.TypeInfo)
		bobPlayer.Ack(protocol.TypeInfo)
		bobPlayer.Answer(protocol.TypeGameOver, "N")
		bobPlayer.Expect(protocol.TypeFin)
	}()
	wg.Wait()
	s.wait(done)

	s.Equal("alice won with 12 points!", over)
}

func (s *ControllerSuite) TestSinglePlayerGroupIsTurnedAway() {
	alice, player := s.seat("alice", 2)

	done := s.play([]*model.Session{alice})

	s.Equal("Game Started", player.Ack(protocol.TypeInfo))
	s.Equal("Not enough players to start the game", player.Expect(protocol.TypeFin))
	player.ExpectClosed()
	s.wait(done)

	rec, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(2), rec.Rank)
}

func (s *ControllerSuite) TestDisconnectAbortsGameForEveryone() {
	alice, alicePlayer := s.seat("alice", 0)
	bob, bobPlayer := s.seat("bob", 0)
	s.random.QueueRolls(5)

	done := s.play([]*model.Session{alice, bob})

	go func() {
		bobPlayer.Ack(protocol.TypeInfo)
		bobPlayer.Ack(protocol.TypeScore)
		bobPlayer.Ack(protocol.TypeInfo)
		_ = bobPlayer.Conn().Close()
	}()

	alicePlayer.Ack(protocol.TypeInfo)
	alicePlayer.Ack(protocol.TypeScore)
	alicePlayer.Answer(protocol.TypeTurn, "r")
	// The second SCORE broadcast reaches alice, then fails on bob
	alicePlayer.Ack(protocol.TypeScore)
	s.Equal("Exception ocurred during game. Connection close.", alicePlayer.Expect(protocol.TypeFin))
	s.wait(done)

	rec, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(0), rec.Rank)
	s.Empty(s.controller.Active())
}

func (s *ControllerSuite) TestActiveGamesTracked() {
	alice, alicePlayer := s.seat("alice", 0)
	bob, _ := s.seat("bob", 0)
	changes := s.controller.Changes()

	done := s.play([]*model.Session{alice, bob})
	<-changes

	games := s.controller.Active()
	s.Require().Len(games, 1)
	s.Equal([]string{"alice", "bob"}, games[0].Players)
	s.Equal(s.clock.Now(), games[0].StartedAt)
	s.NotEmpty(games[0].ID)

	// Alice drops out before acking the start so the game aborts
	_ = alicePlayer.Conn().Close()
	s.wait(done)
	s.Empty(s.controller.Active())
}
