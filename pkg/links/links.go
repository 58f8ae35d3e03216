package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"golang.org/x/sync/errgroup"
)

// PairingPath is the path of the page that reveals an assignment
const PairingPath = "/pairing"

// Query parameter names. These are the wire contract with the reveal page.
const (
	ParamFrom    = "from"
	ParamTo      = "to"
	ParamInfo    = "info"
	ParamSession = "sid"
	ParamLink    = "lid"
	ParamToken   = "token"
)

// DefaultParallelism bounds concurrent cipher calls in EncodeAll
const DefaultParallelism = 8

var (
	ErrMissingName        = errors.New("giver and receiver names are required")
	ErrEncrypt            = errors.New("failed to encrypt receiver")
	ErrDecrypt            = errors.New("failed to decrypt receiver")
	ErrMalformedLink      = errors.New("malformed assignment link")
	ErrUnknownParticipant = errors.New("assignment references a participant missing from the roster")
)

// Cipher is the opaque encryption primitive used for the receiver payload
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Options describes one link to encode
type Options struct {
	Giver        string
	Receiver     string
	ReceiverHint string
	Instructions string
	SessionID    string
	LinkID       string
	Token        string

	// Not encoded, carried for exports
	GiverID    string
	GiverEmail string
}

// EncodeError reports a failed link in a batch
type EncodeError struct {
	Index int
	Giver string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("link for %s: %v", e.Giver, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Codec turns resolved pairings into shareable links and back
type Codec struct {
	BaseURL     string
	Cipher      Cipher
	Parallelism int
}

// NewCodec creates a codec for links rooted at baseURL
func NewCodec(baseURL string, cipher Cipher) *Codec {
	return &Codec{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Cipher:      cipher,
		Parallelism: DefaultParallelism,
	}
}

// Plaintext returns the receiver payload: the bare name, or {name, hint}
// as JSON when a hint is present. Names starting with a brace are always
// wrapped so they cannot be mistaken for the JSON form.
func Plaintext(receiver, hint string) (string, error) {
	if hint == "" && !strings.HasPrefix(receiver, "{") {
		return receiver, nil
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(models.ReceiverData{Name: receiver, Hint: hint}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// ParsePlaintext reverses Plaintext
func ParsePlaintext(plaintext string) models.ReceiverData {
	if strings.HasPrefix(plaintext, "{") {
		var data models.ReceiverData
		if err := json.Unmarshal([]byte(plaintext), &data); err == nil && data.Name != "" {
			return data
		}
	}
	return models.ReceiverData{Name: plaintext}
}

// Encode builds the link for one pairing. No link is returned on failure.
func (c *Codec) Encode(ctx context.Context, opts Options) (string, error) {
	if opts.Giver == "" || opts.Receiver == "" {
		return "", ErrMissingName
	}

	plaintext, err := Plaintext(opts.Receiver, opts.ReceiverHint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncrypt, err)
	}
	ciphertext, err := c.Cipher.Encrypt(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncrypt, err)
	}

	// Ordered by hand, url.Values.Encode would sort the keys
	params := [][2]string{{ParamFrom, opts.Giver}, {ParamTo, ciphertext}}
	if info := strings.TrimSpace(opts.Instructions); info != "" {
		params = append(params, [2]string{ParamInfo, info})
	}
	if opts.SessionID != "" {
		params = append(params, [2]string{ParamSession, opts.SessionID})
	}
	if opts.LinkID != "" {
		params = append(params, [2]string{ParamLink, opts.LinkID})
	}
	if token := strings.TrimSpace(opts.Token); token != "" {
		params = append(params, [2]string{ParamToken, token})
	}

	var b strings.Builder
	b.WriteString(c.BaseURL)
	b.WriteString(PairingPath)
	for i, kv := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String(), nil
}

// EncodeAll encodes every link concurrently. Results keep the input order.
// A failed link leaves an empty entry and is reported in the joined error;
// sibling links are still encoded.
func (c *Codec) EncodeAll(ctx context.Context, batch []Options) ([]string, error) {
	out := make([]string, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	limit := c.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	g.SetLimit(limit)

	for i := range batch {
		i := i
		g.Go(func() error {
			link, err := c.Encode(ctx, batch[i])
			if err != nil {
				errs[i] = &EncodeError{Index: i, Giver: batch[i].Giver, Err: err}
				return nil
			}
			out[i] = link
			return nil
		})
	}
	_ = g.Wait()

	return out, errors.Join(errs...)
}

// Decode reads a link produced by Encode and decrypts the receiver
func (c *Codec) Decode(ctx context.Context, rawURL string) (*models.Reveal, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	if !strings.HasSuffix(u.Path, PairingPath) {
		return nil, fmt.Errorf("%w: unexpected path %q", ErrMalformedLink, u.Path)
	}
	return c.DecodeQuery(ctx, u.Query())
}

// DecodeQuery decodes the query parameters of an assignment link
func (c *Codec) DecodeQuery(ctx context.Context, q url.Values) (*models.Reveal, error) {
	from, to := q.Get(ParamFrom), q.Get(ParamTo)
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: %s and %s are required", ErrMalformedLink, ParamFrom, ParamTo)
	}

	plaintext, err := c.Cipher.Decrypt(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	data := ParsePlaintext(plaintext)

	return &models.Reveal{
		From:         from,
		Name:         data.Name,
		Hint:         data.Hint,
		Instructions: q.Get(ParamInfo),
		SessionID:    q.Get(ParamSession),
		LinkID:       q.Get(ParamLink),
		Token:        q.Get(ParamToken),
	}, nil
}

// Settings controls how an assignment is turned into links
type Settings struct {
	Instructions string
	Tracking     bool
	Token        string
}

// ForAssignment resolves pairings against the live roster, so renames and
// hint edits after generation show up in the links. Results are sorted by
// giver name.
func ForAssignment(participants []models.Participant, a *models.GeneratedAssignment, s Settings) ([]Options, error) {
	byID := make(map[string]*models.Participant, len(participants))
	for i := range participants {
		byID[participants[i].ID] = &participants[i]
	}

	out := make([]Options, 0, len(a.Pairings))
	for _, p := range a.Pairings {
		giver, okG := byID[p.GiverID]
		receiver, okR := byID[p.ReceiverID]
		if !okG || !okR {
			return nil, ErrUnknownParticipant
		}

		opts := Options{
			Giver:        giver.Name,
			Receiver:     receiver.Name,
			ReceiverHint: receiver.Hint,
			Instructions: s.Instructions,
			GiverID:      giver.ID,
			GiverEmail:   giver.Email,
		}
		if s.Tracking {
			opts.SessionID = a.SessionID
			opts.LinkID = p.LinkID
			opts.Token = s.Token
		}
		out = append(out, opts)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Giver < out[j].Giver })
	return out, nil
}
