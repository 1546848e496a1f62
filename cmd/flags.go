package cmd

import (
	"fmt"
	"strings"

	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds each flag to its viper key. Flags that are not defined on
// fs are reported, since a typo would silently detach the config key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("bindFlags: no flag %q for %s", name, key))
		}
		if err := viper.BindPFlag(key, f); err != nil {
			panic(err)
		}
	}
}

// viewsValue is a comma-separated list of view modes. Unknown names are
// rejected while flags are parsed.
type viewsValue struct {
	views   *[]sandbox.Viewport
	changed bool
}

var _ pflag.Value = (*viewsValue)(nil)

func newViewsValue(p *[]sandbox.Viewport, defaults []sandbox.Viewport) *viewsValue {
	*p = defaults
	return &viewsValue{views: p}
}

func (v *viewsValue) Set(s string) error {
	var parsed []sandbox.Viewport
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		vp := sandbox.ViewportFor(name)
		if !strings.EqualFold(vp.Name, name) {
			return fmt.Errorf("unknown view mode %q (desktop, tablet, mobile)", name)
		}
		parsed = append(parsed, vp)
	}
	if v.changed {
		*v.views = append(*v.views, parsed...)
	} else {
		*v.views = parsed
		v.changed = true
	}
	return nil
}

func (v *viewsValue) String() string {
	names := make([]string, 0, len(*v.views))
	for _, vp := range *v.views {
		names = append(names, vp.Name)
	}
	return strings.Join(names, ",")
}

func (v *viewsValue) Type() string {
	return "views"
}
