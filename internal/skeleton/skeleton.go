package skeleton

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/poseconv/internal/pose"
)

//go:embed groups.cue
var groupsCUE string

// Group is one anatomical region.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Table is a loaded group table.
type Table struct {
	Version     string  `json:"version"`
	Description string  `json:"description,omitempty"`
	Groups      []Group `json:"groups"`

	index map[string]int
}

// LoadError describes a group table that failed to compile or validate.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Versions returns the names of the built-in tables.
func Versions() []string {
	v := builtinValue()
	iter, err := v.LookupPath(cue.ParsePath("versions")).Fields()
	if err != nil {
		return nil
	}
	var out []string
	for iter.Next() {
		out = append(out, iter.Selector().String())
	}
	sort.Strings(out)
	return out
}

// Builtin returns the built-in table named version.
func Builtin(version string) (*Table, error) {
	v := builtinValue().LookupPath(cue.MakePath(cue.Str("versions"), cue.Str(version)))
	if !v.Exists() {
		return nil, pose.ConfigurationError("", fmt.Sprintf("unknown group table version %q (available: %s)",
			version, strings.Join(Versions(), ", ")), nil)
	}
	return decode(v, version)
}

// LoadFile compiles a user CUE file holding a top-level groups list and
// checks it against the same schema as the built-in tables.
func LoadFile(path string) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, pose.ConfigurationError(path, "read group table", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(groupsCUE, cue.Filename("groups.cue")).LookupPath(cue.ParsePath("#Table"))
	user := ctx.CompileString(string(src), cue.Filename(path))
	if err := user.Err(); err != nil {
		return nil, pose.ConfigurationError(path, "compile group table", formatCUEError(err))
	}
	return decode(schema.Unify(user), path)
}

// Load resolves ref as a built-in version name, or as a CUE file path when
// it ends in .cue.
func Load(ref string) (*Table, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pose.ConfigurationError("", "group table version is required", nil)
	}
	if strings.HasSuffix(ref, ".cue") {
		return LoadFile(ref)
	}
	return Builtin(ref)
}

func builtinValue() cue.Value {
	return cuecontext.New().CompileString(groupsCUE, cue.Filename("groups.cue"))
}

func decode(v cue.Value, version string) (*Table, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, pose.ConfigurationError(version, "invalid group table", formatCUEError(err))
	}

	t := &Table{Version: version}
	if err := v.Decode(t); err != nil {
		return nil, pose.ConfigurationError(version, "decode group table", formatCUEError(err))
	}
	t.Version = version

	t.index = make(map[string]int)
	for gi, g := range t.Groups {
		for _, m := range g.Members {
			if prev, dup := t.index[m]; dup {
				return nil, pose.ConfigurationError(version, "invalid group table", &LoadError{
					Field:   "groups",
					Message: fmt.Sprintf("%q is in both %q and %q", m, t.Groups[prev].Name, g.Name),
					Pos:     v.Pos(),
				})
			}
			t.index[m] = gi
		}
	}
	return t, nil
}

// GroupOf returns the group index of a keypoint.
func (t *Table) GroupOf(name string) (int, bool) {
	gi, ok := t.index[name]
	return gi, ok
}

// Contains reports whether group gi lists name.
func (t *Table) Contains(gi int, name string) bool {
	return gi >= 0 && gi < len(t.Groups) && slices.Contains(t.Groups[gi].Members, name)
}

// Specs attaches group membership to keypoint names. Ungrouped names get
// group -1.
func (t *Table) Specs(keypoints []string) []pose.KeypointSpec {
	out := make([]pose.KeypointSpec, 0, len(keypoints))
	for _, kp := range keypoints {
		gi, ok := t.GroupOf(kp)
		if !ok {
			gi = -1
		}
		out = append(out, pose.KeypointSpec{Name: kp, Group: gi})
	}
	return out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
