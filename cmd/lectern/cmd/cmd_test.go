package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lectern/internal/apitest"
)

type cli struct {
	backend    *apitest.Server
	configPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	backend := apitest.New(t)
	dir := t.TempDir()
	cfg := fmt.Sprintf(`api:
  baseURL: %s
  rateLimit: 0
storage:
  driver: bbolt
  path: %s
log:
  level: error
`, backend.URL, filepath.Join(dir, "session.db"))
	path := filepath.Join(dir, "lectern.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &cli{backend: backend, configPath: path}
}

// run executes one process-like invocation and returns stdout.
func (c *cli) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", c.configPath}, args...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	out, err := c.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "lectern "+Version+"\n", out)
}

func TestSessionPersistsAcrossRuns(t *testing.T) {
	c := newCLI(t)
	topic := c.backend.SeedTopic("Concurrency")

	out, err := c.run(t, "", "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)

	_, err = c.run(t, "", "topics", "list")
	require.ErrorIs(t, err, errNotLoggedIn)
	assert.Zero(t, c.backend.Calls("GET /topics"))

	out, err = c.run(t, "secret\n", "login", "-u", "reader", "--password-stdin")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as reader (reader)\n", out)

	out, err = c.run(t, "", "status")
	require.NoError(t, err)
	assert.Equal(t, "authenticated as reader (reader)\n", out)

	out, err = c.run(t, "", "topics", "list")
	require.NoError(t, err)
	assert.Contains(t, out, topic.ID)
	assert.Contains(t, out, "Concurrency")

	out, err = c.run(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)
	assert.Equal(t, 1, c.backend.Calls("POST /auth/logout"))

	out, err = c.run(t, "", "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)
}

func TestLoginFailure(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "login", "-u", "reader", "-p", "wrong")
	require.ErrorIs(t, err, errLoginFailed)

	out, err := c.run(t, "", "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)
}

func TestAdminCommands(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "login", "-u", "reader", "-p", "secret")
	require.NoError(t, err)
	_, err = c.run(t, "", "topics", "create", "--title", "Generics")
	require.ErrorIs(t, err, errAdminRequired)
	assert.Zero(t, c.backend.Calls("POST /topics"))

	_, err = c.run(t, "", "login", "-u", "admin", "-p", "correct")
	require.NoError(t, err)
	out, err := c.run(t, "", "topics", "create", "--title", "Generics")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Generics"`)
	assert.Equal(t, 1, c.backend.Calls("POST /topics"))

	out, err = c.run(t, "", "topics", "admin")
	require.NoError(t, err)
	require.Contains(t, out, "Generics")
	id := strings.Fields(strings.Split(out, "\n")[1])[0]

	out, err = c.run(t, "", "topics", "toggle", id)
	require.NoError(t, err)
	assert.Equal(t, "Topic "+id+" is now inactive\n", out)
}

func TestQuestionAndAnswerCommands(t *testing.T) {
	c := newCLI(t)
	topic := c.backend.SeedTopic("Go")
	_, err := c.run(t, "", "login", "-u", "reader", "-p", "secret")
	require.NoError(t, err)

	out, err := c.run(t, "", "questions", "create", "--topic", topic.ID, "--title", "Why channels?")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Why channels?"`)

	out, err = c.run(t, "", "questions", "list", "--topic", topic.ID)
	require.NoError(t, err)
	require.Contains(t, out, "Why channels?")
	qid := strings.Fields(strings.Split(out, "\n")[1])[0]

	out, err = c.run(t, "", "answers", "add", qid, "--body", "Communicate.")
	require.NoError(t, err)
	assert.Contains(t, out, `"body": "Communicate."`)

	out, err = c.run(t, "", "questions", "show", qid)
	require.NoError(t, err)
	assert.Contains(t, out, "Communicate.")

	// Client-side validation rejects an empty answer before any request.
	_, err = c.run(t, "", "answers", "add", qid)
	require.Error(t, err)
	assert.Equal(t, 1, c.backend.Calls("POST /questions/{id}/answers"))
}

func TestMemoryFlagKeepsNothing(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "--memory", "login", "-u", "reader", "-p", "secret")
	require.NoError(t, err)

	out, err := c.run(t, "", "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", out)
}
