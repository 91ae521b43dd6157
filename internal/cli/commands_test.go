package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/dicemeister/internal/config"
	"github.com/mcoot/dicemeister/internal/factory"
	"github.com/mcoot/dicemeister/internal/protocol"
)

// startServer serves a wired test app over real listeners
func startServer(t *testing.T) (app *factory.TestApp, tcpAddr, httpURL string) {
	t.Helper()

	app = factory.NewTestApp(func(c *config.Config) { c.Server.OperatorToken = "op" })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpSrv := httptest.NewServer(app.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- app.Serve(ctx, ln, nil) }()

	t.Cleanup(func() {
		httpSrv.Close()
		cancel()
		<-served
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = app.Close(closeCtx)
	})

	return app, ln.Addr().String(), httpSrv.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlayCommandAgainstServer(t *testing.T) {
	app, addr, _ := startServer(t)
	app.MockRandom.QueueRolls(6, 2, 6, 2)
	tokenDir := t.TempDir()

	// An opponent bot playing on its own connection
	opponentDone := make(chan error, 1)
	go func() {
		conn, err := protocol.DialTCP(context.Background(), addr)
		if err != nil {
			opponentDone <- err
			return
		}
		defer conn.Close()
		_, err = RunSession(conn, &AutoPlayer{Username: "bob", Password: "pw", Register: true, Games: 1}, nil)
		opponentDone <- err
	}()

	// Let bob take the first seat
	require.Eventually(t, func() bool { return app.Queue.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	out, err := execute(t, "play", "--auto", "--register",
		"--addr", addr, "--user", "alice", "--pass", "pw",
		"--token-dir", tokenDir, "--output", "json")
	require.NoError(t, err, out)
	require.NoError(t, <-opponentDone)

	var result PlayResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, 1, result.Games)
	assert.Equal(t, "bob won with 12 points!", result.LastWin)
	assert.Equal(t, "Connection close", result.Closed)
	assert.Equal(t, filepath.Join(tokenDir, "token-alice.txt"), result.TokenFile)

	board, err := app.Ranking.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, int64(12), board[0].Rank)
	assert.Equal(t, "alice", board[1].Username)
	assert.Equal(t, int64(4), board[1].Rank)
}

func TestPlayCommandRequiresCredentials(t *testing.T) {
	_, err := execute(t, "play", "--auto")
	assert.Error(t, err)
}

func TestStatusAndLeaderboardCommands(t *testing.T) {
	app, _, url := startServer(t)
	_, err := app.Ranking.Register(context.Background(), "carol", "pw", "")
	require.NoError(t, err)
	require.NoError(t, app.Ranking.UpdateRank(context.Background(), "carol", 9))

	out, err := execute(t, "status", "--server", url, "--operator-token", "op", "--output", "json")
	require.NoError(t, err, out)
	var status StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "fifo", status.Mode)
	require.Len(t, status.Leaderboard, 1)
	assert.Equal(t, "carol", status.Leaderboard[0].Username)

	out, err = execute(t, "leaderboard", "--server", url, "--operator-token", "op")
	require.NoError(t, err, out)
	assert.Contains(t, out, "carol")

	_, err = execute(t, "status", "--server", url, "--operator-token", "wrong")
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	_, _, url := startServer(t)

	out, err := execute(t, "health", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\n", out)
}
