package dumper

import (
	"fmt"
	"iter"
	"path/filepath"

	"github.com/dimasma0305/ctfdumper/function/config"
	"github.com/dimasma0305/ctfdumper/function/log"
	"github.com/dimasma0305/ctfdumper/function/sanitize"
	"github.com/dimasma0305/ctfdumper/function/scraper/ctfd"
	"github.com/dimasma0305/ctfdumper/function/scraper/templater"
	"github.com/hokaccha/go-prettyjson"
)

type Authenticator interface {
	Login(username string, password string) error
	Logout()
}

type ChallengeSource interface {
	Challenges() iter.Seq2[ctfd.Challenge, error]
}

type Renderer interface {
	Render(challenge ctfd.Challenge) (string, error)
}

type Materializer interface {
	EnsureDirectory(dir string) error
	WriteDocument(dir string, text string) error
	WriteMetadata(dir string, challenge ctfd.Challenge) error
	DownloadFile(ref string, dir string) (string, error)
}

// Deps are the collaborators of a Dumper.
type Deps struct {
	Auth      Authenticator
	Source    ChallengeSource
	Renderer  Renderer
	Writer    Materializer
	Sanitizer *sanitize.Sanitizer
}

// Dumper mirrors every challenge of a platform below Root.
type Dumper struct {
	cfg  *config.Config
	deps Deps
	Root string
}

// Stats counts the outcome of a run.
type Stats struct {
	Dumped  int
	Skipped int
	Files   int
}

func New(cfg *config.Config, deps Deps) (*Dumper, error) {
	if deps.Source == nil || deps.Renderer == nil || deps.Writer == nil {
		return nil, fmt.Errorf("dumper needs a source, a renderer and a writer")
	}
	if !cfg.NoLogin && deps.Auth == nil {
		return nil, fmt.Errorf("dumper needs an authenticator unless login is skipped")
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.Default()
	}
	return &Dumper{cfg: cfg, deps: deps, Root: cfg.Root()}, nil
}

// Setup wires the CTFd client, renderer and writer described by cfg.
func Setup(cfg *config.Config) (*Dumper, error) {
	session, err := ctfd.NewSession(cfg.BaseUrl, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	auth, err := ctfd.NewAuthenticator(session, cfg.NonceRegex, cfg.FailureMarker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	sanitizer, err := sanitize.New(cfg.SanitizeRegex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	renderer, err := templater.Load(cfg.Template)
	if err != nil {
		return nil, err
	}

	var filters []ctfd.FilterFunc
	if cfg.FilterCategory != "" {
		filters = append(filters, ctfd.ByCategory(cfg.FilterCategory))
	}
	if cfg.OnlySolved {
		filters = append(filters, ctfd.OnlySolved())
	}

	return New(cfg, Deps{
		Auth:      auth,
		Source:    ctfd.NewRepository(session, filters...),
		Renderer:  renderer,
		Writer:    NewWriter(session),
		Sanitizer: sanitizer,
	})
}

// Run logs in unless told not to, dumps every challenge and logs out again.
// The first error stops the run unless SkipErrors is set, in which case only a
// failing challenge list or login does.
func (d *Dumper) Run() (Stats, error) {
	if !d.cfg.NoLogin {
		if err := d.deps.Auth.Login(d.cfg.Username, d.cfg.Password); err != nil {
			return Stats{}, err
		}
		log.Debug("Logged in as %s", d.cfg.Username)
		defer func() {
			log.Info("Done! Logging you out!")
			d.deps.Auth.Logout()
		}()
	}
	return d.fetchAll()
}

func (d *Dumper) fetchAll() (Stats, error) {
	var stats Stats
	for challenge, err := range d.deps.Source.Challenges() {
		var files int
		if err == nil {
			files, err = d.Dump(challenge)
		}
		stats.Files += files
		if err != nil {
			if challenge == nil || !d.cfg.SkipErrors {
				return stats, err
			}
			log.Error("skipping challenge %s (%s): %v", challenge.ID(), challenge.Name(), err)
			stats.Skipped++
			continue
		}
		log.SuccessDownload(challenge.Name(), challenge.Category())
		stats.Dumped++
	}
	log.Info("Dumped %d challenges, %d files, %d skipped", stats.Dumped, stats.Files, stats.Skipped)
	return stats, nil
}

// Dir is where a challenge ends up.
func (d *Dumper) Dir(challenge ctfd.Challenge) string {
	return filepath.Join(d.Root, d.deps.Sanitizer.Clean(challenge.Category()), d.deps.Sanitizer.Clean(challenge.Name()))
}

// Dump writes one challenge and returns how many attachments it downloaded.
func (d *Dumper) Dump(challenge ctfd.Challenge) (int, error) {
	category := d.deps.Sanitizer.Clean(challenge.Category())
	name := d.deps.Sanitizer.Clean(challenge.Name())
	log.Info("[%s] %s", category, name)
	if category == "" || name == "" {
		log.Warn("challenge %s has an empty category or name after sanitizing, writing to %s", challenge.ID(), d.Dir(challenge))
	}

	if log.IsVerbose() {
		if data, err := prettyjson.Marshal(challenge); err != nil {
			log.Debug("can't format challenge %s: %v", challenge.ID(), err)
		} else {
			log.Debug("%s", data)
		}
	}

	dir := d.Dir(challenge)
	if err := d.deps.Writer.EnsureDirectory(dir); err != nil {
		return 0, err
	}
	rendered, err := d.deps.Renderer.Render(challenge)
	if err != nil {
		return 0, err
	}
	if err := d.deps.Writer.WriteDocument(dir, rendered); err != nil {
		return 0, err
	}
	if d.cfg.Metadata {
		if err := d.deps.Writer.WriteMetadata(dir, challenge); err != nil {
			return 0, err
		}
	}
	if d.cfg.NoFile {
		return 0, nil
	}

	files := 0
	for _, ref := range challenge.Files() {
		if _, err := d.deps.Writer.DownloadFile(ref, dir); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}
