package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fahmaliyi/keyvault/vault"
)

const maxPasswordAttempts = 3

// App runs keyvault subcommands against the vault file named in its Config.
type App struct {
	cfg          Config
	in           *bufio.Reader
	out          io.Writer
	errw         io.Writer
	log          logrus.FieldLogger
	clip         Clipboard
	readPassword PasswordReader
	params       vault.KDFParams
}

// AppOption configures an App.
type AppOption func(*App)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errw io.Writer) AppOption {
	return func(a *App) {
		a.in = bufio.NewReader(in)
		a.out = out
		a.errw = errw
	}
}

// WithPasswordReader replaces the terminal password prompt.
func WithPasswordReader(r PasswordReader) AppOption {
	return func(a *App) { a.readPassword = r }
}

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) AppOption {
	return func(a *App) { a.clip = c }
}

// WithNewVaultParams sets the scrypt parameters used by init.
func WithNewVaultParams(p vault.KDFParams) AppOption {
	return func(a *App) { a.params = p }
}

// WithLogger replaces the logger built from the Config.
func WithLogger(l logrus.FieldLogger) AppOption {
	return func(a *App) { a.log = l }
}

// NewApp wires an App to the terminal unless options say otherwise.
func NewApp(cfg Config, opts ...AppOption) *App {
	a := &App{
		cfg:    cfg,
		out:    os.Stdout,
		errw:   os.Stderr,
		params: vault.DefaultKDFParams(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.in == nil {
		a.in = bufio.NewReader(os.Stdin)
		if a.readPassword == nil {
			a.readPassword = TerminalPasswordReader(os.Stdin, a.in, a.out)
		}
	}
	if a.readPassword == nil {
		a.readPassword = func(prompt string) ([]byte, error) {
			fmt.Fprint(a.out, prompt)
			return readSecretLine(a.in)
		}
	}
	if a.log == nil {
		a.log = cfg.NewLogger(a.errw)
	}
	if a.clip == nil {
		a.clip = NewClipboardManager(a.log)
	}
	return a
}

// Close cancels any pending clipboard clear.
func (a *App) Close() { a.clip.Close() }

// Run executes one subcommand and returns the process exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		a.usage()
		return 1
	}
	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "-help", "--help":
		a.usage()
		return 0
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		a.fail(fmt.Errorf("unknown command %q", name))
		a.usage()
		return 1
	}

	a.log.WithField("command", name).Debug("running command")
	if err := cmd.run(a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		a.fail(err)
		return 1
	}
	return 0
}

func (a *App) usage() {
	fmt.Fprintln(a.errw, titleStyle.Render("keyvault"))
	fmt.Fprintln(a.errw)
	fmt.Fprintln(a.errw, "Usage: keyvault <command> [flags] [arguments]")
	fmt.Fprintln(a.errw)
	for _, c := range commandTable() {
		fmt.Fprintf(a.errw, "  %-20s %s\n", c.name, c.help)
	}
	fmt.Fprintln(a.errw)
	fmt.Fprintln(a.errw, infoStyle.Render(fmt.Sprintf("The vault file is %s (set %s to change it).", a.cfg.VaultFile, EnvVaultFile)))
}

func (a *App) fail(err error) {
	fmt.Fprintln(a.errw, errorStyle.Render("Error: "+err.Error()))
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(a.errw, infoStyle.Render(hint))
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, vault.ErrWrongMasterPasswordOrCorruption):
		return "Either the master password is wrong or the vault file has been damaged."
	case errors.Is(err, vault.ErrOutdatedBinary):
		return "The vault was written by a newer keyvault. Upgrade keyvault to open it."
	case errors.Is(err, vault.ErrNeedsUpgrade):
		return "The vault uses an older format that this keyvault cannot read."
	case errors.Is(err, vault.ErrCorruption), errors.Is(err, vault.ErrInvalidSchema):
		return "The vault file is damaged. Restore it from a backup if you have one."
	}
	return ""
}

func (a *App) flags(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errw)
	fs.Usage = func() {
		fmt.Fprintf(a.errw, "Usage: keyvault %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// session is an unlocked store bound to its open file.
type session struct {
	*vault.Store
	file vault.File
}

// save writes the store back if anything changed.
func (s *session) save() error {
	if s.State() != vault.StateDirty {
		return nil
	}
	return errors.Wrap(s.Sync(s.file), "saving vault")
}

// withStore asks for the master password, unlocks the vault, runs fn and
// saves the result. Nothing is written when fn fails.
func (a *App) withStore(fn func(*session) error) error {
	path := a.cfg.VaultFile
	ok, err := vault.Exists(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("there is no vault at %s; create one with `keyvault init`", path)
	}

	f, err := vault.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrapf(vault.ErrIO, "reading vault: %v", err)
	}
	s, err := a.unlock(data)
	if err != nil {
		return err
	}
	defer s.Close()

	sess := &session{Store: s, file: f}
	if err := fn(sess); err != nil {
		return err
	}
	return sess.save()
}

// unlock asks for the master password until data opens, giving up after
// maxPasswordAttempts wrong answers. Other failures end it at once.
func (a *App) unlock(data []byte) (*vault.Store, error) {
	for attempt := 1; ; attempt++ {
		master, err := a.readPassword("Type your master password: ")
		if err != nil {
			return nil, err
		}
		s, err := vault.Open(master, data, vault.WithLogger(a.log))
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, vault.ErrWrongMasterPasswordOrCorruption) {
			return nil, err
		}
		if attempt == maxPasswordAttempts {
			return nil, errors.Wrapf(err, "decryption of your vault keeps failing after %d attempts", attempt)
		}
		fmt.Fprintln(a.errw, errorStyle.Render("Decryption failed, try again."))
	}
}

// choose resolves query to one entry: an exact name first, then the fuzzy
// matches, asking the user to pick when there are several.
func (a *App) choose(s *session, query, prompt string) (vault.Entry, error) {
	if e, ok := s.Get(query); ok {
		return e, nil
	}
	matches := s.Search(query)
	switch len(matches) {
	case 0:
		return vault.Entry{}, errors.Wrapf(vault.ErrNoSuchApp, "nothing matches %q", query)
	case 1:
		return matches[0], nil
	}

	a.printList(matches, true)
	fmt.Fprintf(a.out, "%s ", prompt)
	n, err := readChoice(a.in, len(matches))
	if err != nil {
		discard(matches...)
		return vault.Entry{}, err
	}
	chosen := matches[n-1]
	discard(append(matches[:n-1], matches[n:]...)...)
	return chosen, nil
}

func (a *App) printList(entries []vault.Entry, numbered bool) {
	headers := []string{"APP", "USERNAME"}
	if numbered {
		headers = append([]string{"#"}, headers...)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for i, e := range entries {
		row := []string{e.Name, e.Username}
		if numbered {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		t.Row(row...)
	}
	fmt.Fprintln(a.out, t.String())
}

// deliver hands a password to the user, printed or through the clipboard.
// It takes ownership of e.
func (a *App) deliver(e vault.Entry, show bool) error {
	defer e.Secret.Destroy()

	if show {
		fmt.Fprintln(a.out, titleStyle.Render(e.Name))
		fmt.Fprintf(a.out, "Username: %s\n", e.Username)
		fmt.Fprintf(a.out, "Password: %s\n", e.Secret.Reveal())
		return nil
	}

	if err := a.clip.Copy(e.Secret.Reveal(), a.cfg.ClipboardTimeout); err != nil {
		return errors.Wrap(err, "copying password (use -show to print it instead)")
	}
	fmt.Fprintln(a.out, msgStyle.Render(fmt.Sprintf("Password for %q copied to the clipboard.", e.Name)))
	if e.Username != "" {
		fmt.Fprintf(a.out, "Username: %s\n", e.Username)
	}
	if a.cfg.ClipboardTimeout > 0 {
		fmt.Fprintln(a.out, infoStyle.Render(fmt.Sprintf("The clipboard will be cleared in %s.", a.cfg.ClipboardTimeout)))
		a.clip.Wait()
	}
	return nil
}

func discard(entries ...vault.Entry) {
	for _, e := range entries {
		e.Secret.Destroy()
	}
}
