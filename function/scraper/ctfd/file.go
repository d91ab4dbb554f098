package ctfd

import (
	"net/url"
	"path"
	"strings"
)

// FileName returns the last segment of the reference's url path, ignoring the query.
// It is empty when no usable name exists.
func FileName(ref string) string {
	p := strings.SplitN(ref, "?", 2)[0]
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
