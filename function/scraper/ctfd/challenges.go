package ctfd

import (
	"fmt"
	"iter"

	"github.com/dimasma0305/ctfdumper/function/log"
)

// Challenge is a challenge record as the API returns it. Unknown fields are kept
// so templates can use them.
type Challenge map[string]any

type Challenges []Challenge

func (c Challenge) ID() string {
	if v, ok := c["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (c Challenge) Name() string {
	return c.str("name")
}

func (c Challenge) Category() string {
	return c.str("category")
}

func (c Challenge) SolvedByMe() bool {
	solved, _ := c["solved_by_me"].(bool)
	return solved
}

// Files lists the attachment references, absolute or relative to the platform url.
func (c Challenge) Files() []string {
	raw, _ := c["files"].([]any)
	files := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok && s != "" {
			files = append(files, s)
		}
	}
	return files
}

// Validate checks the fields the dumper can't do without.
func (c Challenge) Validate() error {
	if c.ID() == "" {
		return fmt.Errorf("%w: challenge without id", ErrFetch)
	}
	if _, ok := c["name"].(string); !ok {
		return fmt.Errorf("%w: challenge %s has no name", ErrFetch, c.ID())
	}
	if _, ok := c["category"].(string); !ok {
		return fmt.Errorf("%w: challenge %s has no category", ErrFetch, c.ID())
	}
	return nil
}

func (c Challenge) str(key string) string {
	s, _ := c[key].(string)
	return s
}

// Repository reads challenges from the platform API.
type Repository struct {
	session *Session
	filters []FilterFunc
}

func NewRepository(session *Session, filters ...FilterFunc) *Repository {
	return &Repository{session: session, filters: filters}
}

// Challenges lists every challenge and then fetches each one's detail lazily,
// one request per yield. A failing list request yields a nil challenge and ends
// the sequence. A failing detail request yields the summary with the error and
// moves on only if the consumer keeps ranging. Every new range fetches again.
func (r *Repository) Challenges() iter.Seq2[Challenge, error] {
	return func(yield func(Challenge, error) bool) {
		log.Debug("Getting challenges")
		var summaries Challenges
		if err := r.Fetch(r.session.Endpoint("api", "v1", "challenges"), &summaries); err != nil {
			yield(nil, err)
			return
		}

		for _, summary := range summaries.Filter(r.filters...) {
			if summary == nil {
				continue
			}
			id := summary.ID()
			if id == "" {
				if !yield(summary, fmt.Errorf("%w: challenge summary without id", ErrFetch)) {
					return
				}
				continue
			}
			var full Challenge
			err := r.Fetch(r.session.Endpoint("api", "v1", "challenges", id), &full)
			if err == nil {
				err = full.Validate()
			}
			if err != nil {
				if !yield(summary, err) {
					return
				}
				continue
			}
			if !yield(full, nil) {
				return
			}
		}
	}
}
