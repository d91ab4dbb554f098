package dumper

import (
	"bytes"
	"encoding/json"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/dimasma0305/ctfdumper/function/config"
	"github.com/dimasma0305/ctfdumper/function/log"
	"github.com/dimasma0305/ctfdumper/function/scraper/ctfd"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeNumbers(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

type step struct {
	challenge ctfd.Challenge
	err       error
}

// cannedSource yields fixed steps and stops when the consumer does.
type cannedSource struct {
	steps []step
}

func (c *cannedSource) Challenges() iter.Seq2[ctfd.Challenge, error] {
	return func(yield func(ctfd.Challenge, error) bool) {
		for _, s := range c.steps {
			if !yield(s.challenge, s.err) {
				return
			}
		}
	}
}

// recorder implements every collaborator and logs the calls it sees.
type recorder struct {
	calls     []string
	loginErr  error
	renderErr error
	failRef   string
}

func (r *recorder) Login(username string, password string) error {
	r.calls = append(r.calls, "login "+username)
	return r.loginErr
}

func (r *recorder) Logout() {
	r.calls = append(r.calls, "logout")
}

func (r *recorder) Render(challenge ctfd.Challenge) (string, error) {
	r.calls = append(r.calls, "render "+challenge.Name())
	return "# " + challenge.Name(), r.renderErr
}

func (r *recorder) EnsureDirectory(dir string) error {
	r.calls = append(r.calls, "mkdir "+filepath.ToSlash(dir))
	return nil
}

func (r *recorder) WriteDocument(dir string, text string) error {
	r.calls = append(r.calls, "write "+text)
	return nil
}

func (r *recorder) WriteMetadata(dir string, challenge ctfd.Challenge) error {
	r.calls = append(r.calls, "metadata "+challenge.Name())
	return nil
}

func (r *recorder) DownloadFile(ref string, dir string) (string, error) {
	r.calls = append(r.calls, "download "+ref)
	if ref == r.failRef {
		return "", ctfd.ErrFetch
	}
	return filepath.Join(dir, ctfd.FileName(ref)), nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseUrl = "https://ctf.example.com"
	cfg.Username = "player"
	cfg.Password = "hunter2"
	cfg.OutputDir = "out"
	return &cfg
}

func newTestDumper(t *testing.T, cfg *config.Config, steps []step, r *recorder) *Dumper {
	t.Helper()
	d, err := New(cfg, Deps{
		Auth:     r,
		Source:   &cannedSource{steps: steps},
		Renderer: r,
		Writer:   r,
	})
	require.NoError(t, err)
	return d
}

var (
	babyRSA = ctfd.Challenge{"id": 1, "name": "Baby RSA", "category": "Crypto/Intro", "files": []any{"/files/a.txt", "/files/b.txt"}}
	warmup  = ctfd.Challenge{"id": 2, "name": "Warmup", "category": "Pwn"}
)

func TestRunSequence(t *testing.T) {
	r := &recorder{}
	d := newTestDumper(t, testConfig(), []step{{babyRSA, nil}, {warmup, nil}}, r)

	stats, err := d.Run()
	require.NoError(t, err)
	assert.Equal(t, Stats{Dumped: 2, Files: 2}, stats)

	want := []string{
		"login player",
		"mkdir out/ctf.example.com/Crypto_Intro/Baby RSA",
		"render Baby RSA",
		"write # Baby RSA",
		"download /files/a.txt",
		"download /files/b.txt",
		"mkdir out/ctf.example.com/Pwn/Warmup",
		"render Warmup",
		"write # Warmup",
		"logout",
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNoLoginNoFile(t *testing.T) {
	cfg := testConfig()
	cfg.NoLogin = true
	cfg.NoFile = true
	cfg.Metadata = true
	r := &recorder{}
	d := newTestDumper(t, cfg, []step{{babyRSA, nil}}, r)

	stats, err := d.Run()
	require.NoError(t, err)
	assert.Equal(t, Stats{Dumped: 1}, stats)

	want := []string{
		"mkdir out/ctf.example.com/Crypto_Intro/Baby RSA",
		"render Baby RSA",
		"write # Baby RSA",
		"metadata Baby RSA",
	}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLoginFailure(t *testing.T) {
	r := &recorder{loginErr: ctfd.ErrAuth}
	d := newTestDumper(t, testConfig(), []step{{babyRSA, nil}}, r)

	_, err := d.Run()
	assert.ErrorIs(t, err, ctfd.ErrAuth)
	assert.Equal(t, []string{"login player"}, r.calls)
}

func TestRunAbortsOnFirstError(t *testing.T) {
	r := &recorder{failRef: "/files/a.txt"}
	d := newTestDumper(t, testConfig(), []step{{babyRSA, nil}, {warmup, nil}}, r)

	stats, err := d.Run()
	assert.ErrorIs(t, err, ctfd.ErrFetch)
	assert.Equal(t, 0, stats.Dumped)
	assert.NotContains(t, r.calls, "render Warmup")
	assert.NotContains(t, r.calls, "download /files/b.txt")
	assert.Equal(t, "logout", r.calls[len(r.calls)-1])
}

func TestRunSkipErrors(t *testing.T) {
	cfg := testConfig()
	cfg.SkipErrors = true
	detailErr := errors.Join(ctfd.ErrFetch, errors.New("locked"))
	r := &recorder{failRef: "/files/a.txt"}
	d := newTestDumper(t, cfg, []step{{babyRSA, nil}, {ctfd.Challenge{"id": 9}, detailErr}, {warmup, nil}}, r)

	stats, err := d.Run()
	require.NoError(t, err)
	assert.Equal(t, Stats{Dumped: 1, Skipped: 2}, stats)
	assert.Contains(t, r.calls, "write # Warmup")
}

func TestRunListFailureIsFatalEvenWhenSkipping(t *testing.T) {
	cfg := testConfig()
	cfg.SkipErrors = true
	cfg.NoLogin = true
	r := &recorder{}
	d := newTestDumper(t, cfg, []step{{nil, ctfd.ErrFetch}}, r)

	_, err := d.Run()
	assert.ErrorIs(t, err, ctfd.ErrFetch)
	assert.Empty(t, r.calls)
}

func TestRunRenderError(t *testing.T) {
	cfg := testConfig()
	cfg.NoLogin = true
	r := &recorder{renderErr: errors.New("boom")}
	d := newTestDumper(t, cfg, []step{{warmup, nil}}, r)

	_, err := d.Run()
	assert.EqualError(t, err, "boom")
	assert.NotContains(t, r.calls, "write # Warmup")
}

func TestDumpWarnsOnEmptySegment(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cfg := testConfig()
	cfg.NoLogin = true
	r := &recorder{}
	d := newTestDumper(t, cfg, []step{{ctfd.Challenge{"id": 7, "name": "???", "category": "Misc"}, nil}}, r)

	stats, err := d.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dumped)
	assert.Contains(t, buf.String(), "challenge 7 has an empty category or name after sanitizing")
	assert.Contains(t, r.calls, "mkdir out/ctf.example.com/Misc")
}

func TestDumpVerboseUnformattableChallenge(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetVerbose(true)
	t.Cleanup(func() {
		log.SetVerbose(false)
		log.SetOutput(os.Stderr)
	})

	cfg := testConfig()
	cfg.NoLogin = true
	r := &recorder{}
	odd := ctfd.Challenge{"id": 8, "name": "Odd", "category": "Misc", "extra": make(chan int)}
	d := newTestDumper(t, cfg, []step{{odd, nil}}, r)

	stats, err := d.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dumped)
	assert.Contains(t, buf.String(), "can't format challenge 8")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)

	r := &recorder{}
	_, err = New(testConfig(), Deps{Source: &cannedSource{}, Renderer: r, Writer: r})
	assert.Error(t, err)
}
