package ctfd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dimasma0305/ctfdumper/function/log"
)

const (
	DefaultNonceRegex    = `name="nonce"(?:[^<>]+)?value="([0-9a-f]{64})"`
	DefaultFailureMarker = "incorrect"
)

var nonceValue = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Authenticator logs a Session in and out of the platform.
type Authenticator struct {
	session       *Session
	nonceRegex    *regexp.Regexp
	failureMarker string
}

func NewAuthenticator(session *Session, nonceRegex string, failureMarker string) (*Authenticator, error) {
	if nonceRegex == "" {
		nonceRegex = DefaultNonceRegex
	}
	if failureMarker == "" {
		failureMarker = DefaultFailureMarker
	}
	re, err := regexp.Compile(nonceRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce regex: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("nonce regex %q has no capture group", nonceRegex)
	}
	return &Authenticator{
		session:       session,
		nonceRegex:    re,
		failureMarker: failureMarker,
	}, nil
}

// GetNonce scrapes the anti forgery token from the login page.
func (a *Authenticator) GetNonce() (string, error) {
	res, err := a.session.Get(a.session.Endpoint("login"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	body := res.Text()
	if match := a.nonceRegex.FindStringSubmatch(body); match != nil {
		return match[1], nil
	}

	// attribute order the regex does not expect
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		nonce, exist := doc.Find(`input[name="nonce"]`).Attr("value")
		if exist && nonceValue.MatchString(nonce) {
			return nonce, nil
		}
	}
	return "", fmt.Errorf("%w: nonce doesn't exist on the login page", ErrAuth)
}

// Login submits the credentials; afterwards the session cookies carry the authentication.
func (a *Authenticator) Login(username string, password string) error {
	nonce, err := a.GetNonce()
	if err != nil {
		return err
	}
	log.Debug("Nonce: %s", nonce)

	res, err := a.session.Post(a.session.Endpoint("login"), map[string]string{
		"name":     username,
		"password": password,
		"nonce":    nonce,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if body := res.Text(); strings.Contains(body, a.failureMarker) {
		return fmt.Errorf("%w: %s", ErrAuth, failureReason(body))
	}
	return nil
}

// Logout is best effort, errors are only logged.
func (a *Authenticator) Logout() {
	if _, err := a.session.Get(a.session.Endpoint("logout")); err != nil {
		log.Debug("logout: %v", err)
	}
}

// failureReason pulls the flash message out of the login page.
func failureReason(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "invalid credential"
	}
	reason := strings.Join(strings.Fields(doc.Find(".alert").First().Text()), " ")
	if reason == "" {
		return "invalid credential"
	}
	return reason
}
