package publisher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPrefix  = "/securelink"
	DefaultTimeout = time.Hour
)

// Signer issues HMAC-SHA256 signed links of the form
//
//	{prefix}/{basename}?e={expiry}&p={path}&s={signature}&u={user}
//
// The gateway serves a link only while it is unexpired and its signature
// matches.
type Signer struct {
	secret  []byte
	prefix  string
	timeout time.Duration
	user    string
	root    string
	now     func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithPrefix sets the URL prefix links are issued under.
func WithPrefix(prefix string) SignerOption {
	return func(s *Signer) {
		if prefix != "" {
			s.prefix = "/" + strings.Trim(prefix, "/")
		}
	}
}

// WithTimeout sets the link lifetime.
func WithTimeout(d time.Duration) SignerOption {
	return func(s *Signer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUser binds links to a user when the request context carries none.
func WithUser(user string) SignerOption {
	return func(s *Signer) { s.user = user }
}

// WithRoot makes Publish refuse paths that do not exist below root.
func WithRoot(root string) SignerOption {
	return func(s *Signer) { s.root = root }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a Signer. The secret must not be empty.
func NewSigner(secret []byte, opts ...SignerOption) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signer: secret is required")
	}
	s := &Signer{
		secret:  secret,
		prefix:  DefaultPrefix,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements Backend.
func (s *Signer) Name() string { return "signer" }

// Prefix returns the URL prefix links are issued under.
func (s *Signer) Prefix() string { return s.prefix }

// Timeout returns the link lifetime.
func (s *Signer) Timeout() time.Duration { return s.timeout }

// Publish signs path for the user in ctx, or the default user.
func (s *Signer) Publish(ctx context.Context, resource string) (string, error) {
	p, err := cleanPath(resource)
	if err != nil {
		return "", err
	}
	if s.root != "" {
		if _, err := s.Resolve(p); err != nil {
			return "", err
		}
	}

	user := UserFromContext(ctx)
	if user == "" {
		user = s.user
	}
	return s.Sign(p, user, s.now().Add(s.timeout)), nil
}

// Sign builds a link for an already cleaned path.
func (s *Signer) Sign(p, user string, expires time.Time) string {
	exp := strconv.FormatInt(expires.Unix(), 10)

	q := url.Values{}
	q.Set("e", exp)
	q.Set("p", p)
	q.Set("s", s.signature(p, exp, user))
	if user != "" {
		q.Set("u", user)
	}
	return s.prefix + "/" + url.PathEscape(path.Base(p)) + "?" + q.Encode()
}

// Link is a verified signed link.
type Link struct {
	Path    string
	User    string
	Expires time.Time
}

// Verify checks a link issued by Sign and returns what it grants.
func (s *Signer) Verify(rawURL string) (*Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	q := u.Query()
	p, exp, sig, user := q.Get("p"), q.Get("e"), q.Get("s"), q.Get("u")
	if p == "" || exp == "" || sig == "" {
		return nil, fmt.Errorf("%w: missing parameters", ErrBadSignature)
	}
	if u.Path != s.prefix+"/"+path.Base(p) {
		return nil, fmt.Errorf("%w: path mismatch", ErrBadSignature)
	}

	want := s.signature(p, exp, user)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return nil, ErrBadSignature
	}

	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expiry", ErrBadSignature)
	}
	expires := time.Unix(unix, 0)
	if !s.now().Before(expires) {
		return nil, ErrExpired
	}

	return &Link{Path: p, User: user, Expires: expires}, nil
}

// Resolve maps a resource path to a regular file below the root.
func (s *Signer) Resolve(resource string) (string, error) {
	if s.root == "" {
		return "", fmt.Errorf("%w: no document root configured", ErrNotFound)
	}
	p, err := cleanPath(resource)
	if err != nil {
		return "", err
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	full := filepath.Join(root, filepath.FromSlash(p))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return full, nil
}

func (s *Signer) signature(p, exp, user string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(p))
	mac.Write([]byte{0})
	mac.Write([]byte(exp))
	mac.Write([]byte{0})
	mac.Write([]byte(user))
	return hex.EncodeToString(mac.Sum(nil))
}
