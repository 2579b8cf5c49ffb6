package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/fahmaliyi/keyvault/secret"
	"github.com/fahmaliyi/keyvault/vault"
)

type command struct {
	name string
	help string
	run  func(a *App, args []string) error
}

func commandTable() []command {
	return []command{
		{"init", "create a new vault", (*App).cmdInit},
		{"add", "add a password for an app", (*App).cmdAdd},
		{"get", "copy (or -show) the password of an app", (*App).cmdGet},
		{"list", "list every app", (*App).cmdList},
		{"search", "list the apps matching a query", (*App).cmdSearch},
		{"delete", "delete an app", (*App).cmdDelete},
		{"rename", "rename an app", (*App).cmdRename},
		{"transfer", "change the username of an app", (*App).cmdTransfer},
		{"change", "type a new password for an app", (*App).cmdChange},
		{"regenerate", "generate a new password for an app", (*App).cmdRegenerate},
		{"set-master-password", "change the master password", (*App).cmdSetMasterPassword},
		{"set-kdf-params", "change the scrypt parameters", (*App).cmdSetKDFParams},
		{"tui", "browse the vault interactively", (*App).cmdTUI},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commandTable() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (a *App) cmdInit(args []string) error {
	fs := a.flags("init", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return fmt.Errorf("init takes no arguments")
	}

	path := a.cfg.VaultFile
	exists, err := vault.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("there is already a vault at %s", path)
	}

	fmt.Fprintln(a.out, titleStyle.Render("Welcome to keyvault"))
	fmt.Fprintln(a.out, infoStyle.Render("You only need to remember one password: the master password. It protects every other password you store."))
	master, err := readNewPassword(a.readPassword, "master password")
	if err != nil {
		return err
	}

	s, err := vault.New(master, vault.WithKDFParams(a.params), vault.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := vault.CreateFile(path)
	if err != nil {
		return err
	}
	if err := s.Sync(f); err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			return errors.Wrapf(err, "saving vault; remove the dangling file %s", path)
		}
		return errors.Wrap(err, "saving vault")
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(vault.ErrIO, "closing vault file: %v", err)
	}

	fmt.Fprintln(a.out, msgStyle.Render("All done. Your passwords will be saved in "+path))
	fmt.Fprintln(a.out, infoStyle.Render(fmt.Sprintf("Set %s to keep them somewhere else.", EnvVaultFile)))
	return nil
}

func (a *App) cmdAdd(args []string) error {
	fs := a.flags("add", "[-generate [-alnum] [-length N]] [-show] <app> <username>")
	generate := fs.Bool("generate", false, "generate a random password instead of typing one")
	alnum := fs.Bool("alnum", false, "only use letters and digits in the generated password")
	length := fs.Int("length", DefaultPasswordLength, "length of the generated password")
	show := fs.Bool("show", false, "print the password instead of copying it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("add needs an app name and a username")
	}
	app, username := fs.Arg(0), fs.Arg(1)

	var pw secret.String
	if *generate {
		var err error
		if pw, err = GeneratePassword(PasswordSpec{Alnum: *alnum, Length: *length}); err != nil {
			return err
		}
	}

	var added vault.Entry
	err := a.withStore(func(s *session) error {
		if s.Has(app) {
			return errors.Wrapf(vault.ErrAppExists, "%q", app)
		}
		if !*generate {
			raw, err := a.readPassword(fmt.Sprintf("What password do you want for %q? ", app))
			if err != nil {
				return err
			}
			pw = secret.StringFromBytes(raw)
		}
		if err := s.Add(vault.NewEntry(app, username, pw)); err != nil {
			return err
		}
		added, _ = s.Get(app)
		return nil
	})
	if err != nil {
		pw.Destroy()
		return err
	}
	return a.deliver(added, *show)
}

func (a *App) cmdGet(args []string) error {
	fs := a.flags("get", "[-show] <query>")
	show := fs.Bool("show", false, "print the password instead of copying it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("get needs a query")
	}

	prompt := "Which password would you like to copy?"
	if *show {
		prompt = "Which password would you like to see?"
	}
	var got vault.Entry
	err := a.withStore(func(s *session) (err error) {
		got, err = a.choose(s, fs.Arg(0), prompt)
		return err
	})
	if err != nil {
		return err
	}
	return a.deliver(got, *show)
}

func (a *App) cmdList(args []string) error {
	fs := a.flags("list", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.withStore(func(s *session) error {
		entries := s.List()
		defer discard(entries...)
		if len(entries) == 0 {
			fmt.Fprintln(a.out, infoStyle.Render("No passwords yet. Add one with `keyvault add <app> <username>`."))
			return nil
		}
		a.printList(entries, false)
		return nil
	})
}

func (a *App) cmdSearch(args []string) error {
	fs := a.flags("search", "<query>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("search needs a query")
	}
	return a.withStore(func(s *session) error {
		entries := s.Search(fs.Arg(0))
		defer discard(entries...)
		if len(entries) == 0 {
			return errors.Wrapf(vault.ErrNoSuchApp, "nothing matches %q", fs.Arg(0))
		}
		a.printList(entries, false)
		return nil
	})
}

func (a *App) cmdDelete(args []string) error {
	fs := a.flags("delete", "<query>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("delete needs a query")
	}
	return a.withStore(func(s *session) error {
		e, err := a.choose(s, fs.Arg(0), "Which password would you like to delete?")
		if err != nil {
			return err
		}
		discard(e)
		deleted, err := s.Delete(e.Name)
		if err != nil {
			return err
		}
		discard(deleted)
		fmt.Fprintln(a.out, msgStyle.Render(fmt.Sprintf("Deleted the password for %q.", deleted.Name)))
		return nil
	})
}

func (a *App) cmdRename(args []string) error {
	fs := a.flags("rename", "<query> <new name>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("rename needs a query and the new name")
	}
	return a.withStore(func(s *session) error {
		e, err := a.choose(s, fs.Arg(0), "Which app would you like to rename?")
		if err != nil {
			return err
		}
		discard(e)
		renamed, err := s.Rename(e.Name, fs.Arg(1))
		if err != nil {
			return err
		}
		discard(renamed)
		fmt.Fprintln(a.out, msgStyle.Render(fmt.Sprintf("Renamed %q to %q.", e.Name, renamed.Name)))
		return nil
	})
}

func (a *App) cmdTransfer(args []string) error {
	fs := a.flags("transfer", "<query> <new username>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("transfer needs a query and the new username")
	}
	return a.withStore(func(s *session) error {
		e, err := a.choose(s, fs.Arg(0), "Which app would you like to transfer?")
		if err != nil {
			return err
		}
		discard(e)
		moved, err := s.Transfer(e.Name, fs.Arg(1))
		if err != nil {
			return err
		}
		discard(moved)
		fmt.Fprintln(a.out, msgStyle.Render(fmt.Sprintf("The username for %q is now %q.", moved.Name, moved.Username)))
		return nil
	})
}

func (a *App) cmdChange(args []string) error {
	fs := a.flags("change", "[-show] <query>")
	show := fs.Bool("show", false, "print the password instead of copying it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("change needs a query")
	}

	var changed vault.Entry
	err := a.withStore(func(s *session) error {
		e, err := a.choose(s, fs.Arg(0), "Which password would you like to update?")
		if err != nil {
			return err
		}
		discard(e)
		raw, err := a.readPassword(fmt.Sprintf("What password do you want for %q? ", e.Name))
		if err != nil {
			return err
		}
		changed, err = s.ChangeSecret(e.Name, secret.StringFromBytes(raw))
		return err
	})
	if err != nil {
		return err
	}
	return a.deliver(changed, *show)
}

func (a *App) cmdRegenerate(args []string) error {
	fs := a.flags("regenerate", "[-alnum] [-length N] [-show] <query>")
	alnum := fs.Bool("alnum", false, "only use letters and digits")
	length := fs.Int("length", DefaultPasswordLength, "length of the new password")
	show := fs.Bool("show", false, "print the password instead of copying it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("regenerate needs a query")
	}
	pw, err := GeneratePassword(PasswordSpec{Alnum: *alnum, Length: *length})
	if err != nil {
		return err
	}

	var changed vault.Entry
	err = a.withStore(func(s *session) error {
		e, err := a.choose(s, fs.Arg(0), "Which password would you like to regenerate?")
		if err != nil {
			return err
		}
		discard(e)
		changed, err = s.ChangeSecret(e.Name, pw)
		return err
	})
	if err != nil {
		pw.Destroy()
		return err
	}
	return a.deliver(changed, *show)
}

func (a *App) cmdSetMasterPassword(args []string) error {
	fs := a.flags("set-master-password", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.withStore(func(s *session) error {
		master, err := readNewPassword(a.readPassword, "new master password")
		if err != nil {
			return err
		}
		if err := s.ChangeMasterPassword(master); err != nil {
			return err
		}
		fmt.Fprintln(a.out, msgStyle.Render("Your master password has been changed."))
		return nil
	})
}

func (a *App) cmdSetKDFParams(args []string) error {
	fs := a.flags("set-kdf-params", "[-force] <log2_n> <r> <p>")
	force := fs.Bool("force", false, "accept parameters above the recommended limits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("set-kdf-params needs log2_n, r and p")
	}
	p, err := parseKDFParams(fs.Arg(0), fs.Arg(1), fs.Arg(2))
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ExceedsRecommended() && !*force {
		return fmt.Errorf("%s seems very high and could make the vault impossible to open; "+
			"back up the vault file and run again with -force", p)
	}

	return a.withStore(func(s *session) error {
		if err := s.ChangeKDFParams(p); err != nil {
			return err
		}
		fmt.Fprintln(a.out, msgStyle.Render("Key derivation parameters set to "+p.String()+"."))
		return nil
	})
}

func parseKDFParams(logN, r, p string) (vault.KDFParams, error) {
	n, err := strconv.ParseUint(logN, 10, 8)
	if err != nil {
		return vault.KDFParams{}, errors.Wrap(err, "log2_n")
	}
	rv, err := strconv.ParseUint(r, 10, 32)
	if err != nil {
		return vault.KDFParams{}, errors.Wrap(err, "r")
	}
	pv, err := strconv.ParseUint(p, 10, 32)
	if err != nil {
		return vault.KDFParams{}, errors.Wrap(err, "p")
	}
	return vault.KDFParams{LogN: uint8(n), R: uint32(rv), P: uint32(pv)}, nil
}

func (a *App) cmdTUI(args []string) error {
	fs := a.flags("tui", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.withStore(func(s *session) error {
		return runTUI(s, a.clip, a.cfg.ClipboardTimeout)
	})
}
