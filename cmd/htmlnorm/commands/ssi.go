package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/htmlnorm/internal/config"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/include"
	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
)

// SSICmd implements the 'ssi' command.
type SSICmd struct {
	File   string `arg:"" help:"HTML file containing include directives" type:"existingfile"`
	Output string `short:"o" help:"Output file (default: <name>_processed.<ext> next to the input)"`
	Base   string `help:"Directory include targets resolve against (default: ssi.base_dir)"`
}

func (c *SSICmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return err
	}
	base := c.Base
	if base == "" {
		base = cfg.SSI.BaseDir
	}
	out := c.Output
	if out == "" {
		out = include.OutputPath(c.File)
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read input").
			WithContext("path", c.File).Build()
	}
	docPath, err := docPathUnder(base, c.File)
	if err != nil {
		return err
	}

	res := include.NewResolver(os.DirFS(base)).Resolve(string(data), docPath)
	for _, w := range res.Unresolved {
		attrs := []any{logfields.Path(c.File), logfields.Error(w)}
		if ce, ok := ferrors.AsClassified(w); ok {
			attrs = append(attrs, ce.LogAttrs()...)
		}
		slog.Warn("Include left unresolved", attrs...)
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(c.File); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.WriteFile(out, []byte(res.Content), mode); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write output").
			WithContext("path", out).Build()
	}
	fmt.Printf("Processed %s -> %s (%d resolved, %d unresolved)\n", c.File, out, res.Resolved, len(res.Unresolved))
	return nil
}

// docPathUnder returns file as a slash path relative to base. Files outside
// base resolve relative includes against base itself.
func docPathUnder(base, file string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve base directory").Build()
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve input").Build()
	}
	rel, err := filepath.Rel(absBase, absFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(file), nil
	}
	return filepath.ToSlash(rel), nil
}
