package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahmaliyi/keyvault/vault"
)

var fastParams = vault.KDFParams{LogN: 4, R: 8, P: 1}

type fakeClipboard struct {
	copied  []string
	cleared int
}

func (c *fakeClipboard) Copy(text string, _ time.Duration) error {
	c.copied = append(c.copied, text)
	return nil
}

func (c *fakeClipboard) ClearNow() error {
	c.cleared++
	return nil
}

func (c *fakeClipboard) Wait()  {}
func (c *fakeClipboard) Close() {}

func (c *fakeClipboard) last() string {
	if len(c.copied) == 0 {
		return ""
	}
	return c.copied[len(c.copied)-1]
}

type harness struct {
	t    *testing.T
	cfg  Config
	clip *fakeClipboard
	out  bytes.Buffer
	errw bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	cfg := DefaultConfig()
	cfg.VaultFile = filepath.Join(t.TempDir(), "test.keyvault")
	return &harness{t: t, cfg: cfg, clip: &fakeClipboard{}}
}

// run executes one command. passwords answer the password prompts in order
// and input feeds the other prompts.
func (h *harness) run(input string, passwords []string, args ...string) int {
	h.t.Helper()
	h.out.Reset()
	h.errw.Reset()

	queue := passwords
	read := func(string) ([]byte, error) {
		if len(queue) == 0 {
			return nil, errors.New("unexpected password prompt")
		}
		pw := queue[0]
		queue = queue[1:]
		return []byte(pw), nil
	}
	l := logrus.New()
	l.SetOutput(io.Discard)

	app := NewApp(h.cfg,
		WithIO(strings.NewReader(input), &h.out, &h.errw),
		WithPasswordReader(read),
		WithClipboard(h.clip),
		WithNewVaultParams(fastParams),
		WithLogger(l),
	)
	defer app.Close()
	code := app.Run(args)
	assert.Empty(h.t, queue, "unused passwords for %v", args)
	return code
}

func (h *harness) mustRun(input string, passwords []string, args ...string) {
	h.t.Helper()
	require.Equal(h.t, 0, h.run(input, passwords, args...), "stderr: %s", h.errw.String())
}

func (h *harness) init() {
	h.t.Helper()
	h.mustRun("", []string{"master", "master"}, "init")
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	h.init()
	assert.Contains(t, h.out.String(), h.cfg.VaultFile)

	info, err := os.Stat(h.cfg.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2, 4}, raw[:5])

	assert.Equal(t, 1, h.run("", nil, "init"))
	assert.Contains(t, h.errw.String(), "already a vault")
}

func TestInitRejectsBadMasterPassword(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("", []string{"one", "two"}, "init"))
	assert.Contains(t, h.errw.String(), "do not match")

	assert.Equal(t, 1, h.run("", []string{""}, "init"))
	assert.Contains(t, h.errw.String(), "cannot be empty")

	_, err := os.Stat(h.cfg.VaultFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCommandsNeedAVault(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.run("", nil, "list"))
	assert.Contains(t, h.errw.String(), "keyvault init")
}

func TestAddGet(t *testing.T) {
	h := newHarness(t)
	h.init()

	h.mustRun("", []string{"master", "p4ss"}, "add", "YouTube", "u@x")
	assert.Equal(t, "p4ss", h.clip.last())
	assert.Contains(t, h.out.String(), "u@x")

	h.mustRun("", []string{"master"}, "get", "-show", "youtube")
	assert.Contains(t, h.out.String(), "Password: p4ss")
	assert.Contains(t, h.out.String(), "Username: u@x")

	h.mustRun("", []string{"master"}, "get", "YT")
	assert.Len(t, h.clip.copied, 2)
	assert.Equal(t, "p4ss", h.clip.last())
}

func TestAddDuplicate(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "GitHub", "u")

	assert.Equal(t, 1, h.run("", []string{"master"}, "add", "github", "v"))
	assert.Contains(t, h.errw.String(), "already exists")
}

func TestAddGenerate(t *testing.T) {
	h := newHarness(t)
	h.init()

	h.mustRun("", []string{"master"}, "add", "-generate", "-alnum", "-length", "20", "Bank", "me")
	pw := h.clip.last()
	assert.Len(t, pw, 20)
	assert.Regexp(t, "^[a-zA-Z0-9]+$", pw)

	assert.Equal(t, 1, h.run("", nil, "add", "-generate", "-length", "5", "Other", "me"))
}

func TestWrongMasterPassword(t *testing.T) {
	h := newHarness(t)
	h.init()

	assert.Equal(t, 1, h.run("", []string{"nok", "nok", "nok"}, "list"))
	assert.Contains(t, h.errw.String(), "keeps failing")
	assert.Contains(t, h.errw.String(), "master password is wrong")
}

func TestMasterPasswordRetry(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "A", "u")

	h.mustRun("", []string{"nok", "nok", "master"}, "get", "-show", "a")
	assert.Contains(t, h.out.String(), "Password: p")
	assert.Equal(t, 2, strings.Count(h.errw.String(), "try again"))

	h.mustRun("", []string{"nok", "master", "p2"}, "change", "a")
	h.mustRun("", []string{"master"}, "get", "-show", "a")
	assert.Contains(t, h.out.String(), "Password: p2")
}

func TestCorruptVaultIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.init()
	require.NoError(t, os.WriteFile(h.cfg.VaultFile, []byte{0, 0, 0, 9}, 0600))

	assert.Equal(t, 1, h.run("", []string{"master"}, "list"))
	assert.Contains(t, h.errw.String(), "newer")
}

func TestGetChoosesAmongMatches(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "hub"}, "add", "GitHub", "u")
	h.mustRun("", []string{"master", "lab"}, "add", "GitLab", "u")

	h.mustRun("2\n", []string{"master"}, "get", "git")
	assert.Equal(t, "lab", h.clip.last())
	assert.Contains(t, h.out.String(), "GitHub")

	assert.Equal(t, 1, h.run("7\n", []string{"master"}, "get", "git"))
	assert.Equal(t, 1, h.run("", []string{"master"}, "get", "zzz"))
	assert.Contains(t, h.errw.String(), "no such app")
}

func TestListAndSearch(t *testing.T) {
	h := newHarness(t)
	h.init()

	h.mustRun("", []string{"master"}, "list")
	assert.Contains(t, h.out.String(), "No passwords yet")

	for _, name := range []string{"Facebook", "GitHub", "GitLab"} {
		h.mustRun("", []string{"master", "p"}, "add", name, "user-"+name)
	}

	h.mustRun("", []string{"master"}, "list")
	out := h.out.String()
	assert.Contains(t, out, "user-Facebook")
	assert.Less(t, strings.Index(out, "Facebook"), strings.Index(out, "GitHub"))
	assert.Less(t, strings.Index(out, "GitHub"), strings.Index(out, "GitLab"))

	h.mustRun("", []string{"master"}, "search", "gh")
	assert.Contains(t, h.out.String(), "GitHub")
	assert.NotContains(t, h.out.String(), "GitLab")
	assert.NotContains(t, h.out.String(), "Facebook")
}

func TestRenameTransferChangeDelete(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "YouTube", "u@x")

	h.mustRun("", []string{"master"}, "rename", "youtube", "YT")
	h.mustRun("", []string{"master"}, "transfer", "yt", "new@x")
	h.mustRun("", []string{"master", "p2"}, "change", "-show", "yt")
	assert.Contains(t, h.out.String(), "Password: p2")

	h.mustRun("", []string{"master"}, "get", "-show", "YT")
	assert.Contains(t, h.out.String(), "Username: new@x")
	assert.Contains(t, h.out.String(), "Password: p2")

	h.mustRun("", []string{"master"}, "regenerate", "-length", "40", "yt")
	assert.Len(t, h.clip.last(), 40)

	h.mustRun("", []string{"master"}, "delete", "yt")
	h.mustRun("", []string{"master"}, "list")
	assert.Contains(t, h.out.String(), "No passwords yet")
}

func TestFailedCommandLeavesFileUntouched(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "A", "u")
	h.mustRun("", []string{"master", "p"}, "add", "B", "u")
	before, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)

	assert.Equal(t, 1, h.run("", []string{"master"}, "rename", "a", "b"))

	after, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReadOnlyCommandsDoNotRewrite(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "A", "u")
	before, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)

	h.mustRun("", []string{"master"}, "get", "a")
	h.mustRun("", []string{"master"}, "list")

	after, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetMasterPassword(t *testing.T) {
	h := newHarness(t)
	h.init()
	h.mustRun("", []string{"master", "p"}, "add", "A", "u")

	h.mustRun("", []string{"master", "m2", "m2"}, "set-master-password")

	assert.Equal(t, 1, h.run("", []string{"master", "master", "master"}, "list"))
	h.mustRun("", []string{"m2"}, "get", "-show", "a")
	assert.Contains(t, h.out.String(), "Password: p")
}

func TestSetKDFParams(t *testing.T) {
	h := newHarness(t)
	h.init()

	assert.Equal(t, 1, h.run("", nil, "set-kdf-params", "21", "8", "1"))
	assert.Contains(t, h.errw.String(), "-force")

	assert.Equal(t, 1, h.run("", nil, "set-kdf-params", "0", "8", "1"))
	assert.Equal(t, 1, h.run("", nil, "set-kdf-params", "x", "8", "1"))

	h.mustRun("", []string{"master"}, "set-kdf-params", "5", "4", "1")
	raw, err := os.ReadFile(h.cfg.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, byte(5), raw[4])
	assert.Equal(t, []byte{0, 0, 0, 4}, raw[5:9])

	h.mustRun("", []string{"master"}, "set-kdf-params", "-force", "5", "9", "1")
	h.mustRun("", []string{"master"}, "list")
}

func TestUnknownCommandAndHelp(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run("", nil, "frobnicate"))
	assert.Contains(t, h.errw.String(), "unknown command")

	assert.Equal(t, 0, h.run("", nil, "help"))
	assert.Contains(t, h.errw.String(), "set-kdf-params")

	assert.Equal(t, 1, h.run("", nil))
	assert.Equal(t, 1, h.run("", nil, "get"))
}
