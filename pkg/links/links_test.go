package links

import (
	"context"
	"encoding/csv"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/arnavshah/secret-santa-api/pkg/models"
)

// fakeCipher prefixes plaintexts and fails for a chosen plaintext
type fakeCipher struct {
	failOn string
	calls  atomic.Int32
}

var errBoom = errors.New("boom")

func (f *fakeCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.failOn != "" && strings.Contains(plaintext, f.failOn) {
		return "", errBoom
	}
	return "enc:" + plaintext, nil
}

func (f *fakeCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errBoom
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func TestEncode_ParameterOrderAndNames(t *testing.T) {
	c := NewCodec("https://santa.example.com/app/", &fakeCipher{})

	link, err := c.Encode(context.Background(), Options{
		Giver:        "Alice",
		Receiver:     "Bob",
		Instructions: "  budget 20 EUR  ",
		SessionID:    "s1",
		LinkID:       "l1",
		Token:        " tok ",
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "https://santa.example.com/app/pairing?from=Alice&to=enc%3ABob&info=budget+20+EUR&sid=s1&lid=l1&token=tok"
	if link != want {
		t.Errorf("Expected %s, got %s", want, link)
	}
}

func TestEncode_OmitsEmptyOptionalParams(t *testing.T) {
	c := NewCodec("http://localhost:8000", &fakeCipher{})

	link, err := c.Encode(context.Background(), Options{Giver: "Alice", Receiver: "Bob", Instructions: "   ", Token: "  "})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(link)
	for _, p := range []string{ParamInfo, ParamSession, ParamLink, ParamToken} {
		if u.Query().Has(p) {
			t.Errorf("Expected %s to be omitted from %s", p, link)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := NewCodec("http://localhost:8000", &fakeCipher{})
	ctx := context.Background()

	tests := []struct {
		name     string
		hint     string
		wantText string
	}{
		{name: "bare name", wantText: "Bob, Jr."},
		{name: "with hint", hint: "likes \"jazz\" & tea", wantText: `{"name":"Bob, Jr.","hint":"likes \"jazz\" & tea"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := c.Encode(ctx, Options{Giver: "Alice, Sr.", Receiver: "Bob, Jr.", ReceiverHint: tt.hint, SessionID: "s", LinkID: "l"})
			if err != nil {
				t.Fatal(err)
			}

			u, _ := url.Parse(link)
			plaintext := strings.TrimPrefix(u.Query().Get(ParamTo), "enc:")
			if plaintext != tt.wantText {
				t.Errorf("Expected plaintext %s, got %s", tt.wantText, plaintext)
			}

			reveal, err := c.Decode(ctx, link)
			if err != nil {
				t.Fatal(err)
			}
			if reveal.From != "Alice, Sr." || reveal.Name != "Bob, Jr." || reveal.Hint != tt.hint {
				t.Errorf("Unexpected reveal: %+v", reveal)
			}
			if reveal.SessionID != "s" || reveal.LinkID != "l" {
				t.Errorf("Expected tracking ids to survive, got %+v", reveal)
			}
		})
	}
}

func TestEncode_MissingNames(t *testing.T) {
	f := &fakeCipher{}
	c := NewCodec("http://x", f)
	for _, opts := range []Options{{Receiver: "Bob"}, {Giver: "Alice"}} {
		if _, err := c.Encode(context.Background(), opts); !errors.Is(err, ErrMissingName) {
			t.Errorf("Expected ErrMissingName, got %v", err)
		}
	}
	if f.calls.Load() != 0 {
		t.Errorf("Expected no cipher calls for invalid input")
	}
}

func TestEncode_CipherFailure(t *testing.T) {
	c := NewCodec("http://x", &fakeCipher{failOn: "Bob"})
	link, err := c.Encode(context.Background(), Options{Giver: "Alice", Receiver: "Bob"})
	if !errors.Is(err, ErrEncrypt) || !errors.Is(err, errBoom) {
		t.Errorf("Expected wrapped encryption error, got %v", err)
	}
	if link != "" {
		t.Errorf("Expected no link on failure, got %s", link)
	}
}

func TestEncodeAll_PartialFailure(t *testing.T) {
	c := NewCodec("http://x", &fakeCipher{failOn: "Carol"})
	batch := []Options{
		{Giver: "Alice", Receiver: "Bob"},
		{Giver: "Bob", Receiver: "Carol"},
		{Giver: "Carol", Receiver: "Alice"},
	}

	out, err := c.EncodeAll(context.Background(), batch)
	if err == nil {
		t.Fatal("Expected an error for the failed link")
	}
	var encErr *EncodeError
	if !errors.As(err, &encErr) || encErr.Index != 1 || encErr.Giver != "Bob" {
		t.Errorf("Expected EncodeError for index 1, got %v", err)
	}
	if out[0] == "" || out[2] == "" {
		t.Errorf("Expected sibling links to be encoded, got %v", out)
	}
	if out[1] != "" {
		t.Errorf("Expected failed link to be empty, got %s", out[1])
	}
	if rows := Rows(batch, out); len(rows) != 2 {
		t.Errorf("Expected 2 exportable rows, got %d", len(rows))
	}
}

func TestEncodeAll_Cancelled(t *testing.T) {
	c := NewCodec("http://x", &fakeCipher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.EncodeAll(ctx, []Options{{Giver: "A", Receiver: "B"}, {Giver: "B", Receiver: "A"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	c := NewCodec("http://x", &fakeCipher{})
	ctx := context.Background()

	for _, link := range []string{
		"http://x/other?from=A&to=enc:B",
		"http://x/pairing?from=A",
		"http://x/pairing?to=enc:B",
	} {
		if _, err := c.Decode(ctx, link); !errors.Is(err, ErrMalformedLink) {
			t.Errorf("%s: expected ErrMalformedLink, got %v", link, err)
		}
	}
	if _, err := c.Decode(ctx, "http://x/pairing?from=A&to=garbage"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt, got %v", err)
	}
}

func TestParsePlaintext_BraceName(t *testing.T) {
	got := ParsePlaintext("{not json")
	if got.Name != "{not json" || got.Hint != "" {
		t.Errorf("Expected bare name fallback, got %+v", got)
	}
}

func TestEncodeDecode_JSONLookingName(t *testing.T) {
	c := NewCodec("http://localhost:8000", &fakeCipher{})
	ctx := context.Background()
	name := `{"name":"Eve","hint":"x"}`

	link, err := c.Encode(ctx, Options{Giver: "Alice", Receiver: name})
	if err != nil {
		t.Fatal(err)
	}
	reveal, err := c.Decode(ctx, link)
	if err != nil {
		t.Fatal(err)
	}
	if reveal.Name != name || reveal.Hint != "" {
		t.Errorf("Expected name %q without hint, got %+v", name, reveal)
	}
}

func TestForAssignment(t *testing.T) {
	participants := []models.Participant{
		{ID: "1", Name: "Carol", Email: "carol@example.com"},
		{ID: "2", Name: "Alice", Hint: "socks"},
		{ID: "3", Name: "Bob"},
	}
	a := &models.GeneratedAssignment{
		SessionID: "sess",
		Pairings: []models.Pairing{
			{GiverID: "1", ReceiverID: "2", LinkID: "l1"},
			{GiverID: "2", ReceiverID: "3", LinkID: "l2"},
			{GiverID: "3", ReceiverID: "1", LinkID: "l3"},
		},
	}

	plain, err := ForAssignment(participants, a, Settings{Instructions: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if plain[0].Giver != "Alice" || plain[1].Giver != "Bob" || plain[2].Giver != "Carol" {
		t.Errorf("Expected options sorted by giver, got %+v", plain)
	}
	if plain[2].ReceiverHint != "socks" || plain[2].GiverEmail != "carol@example.com" {
		t.Errorf("Expected live hint and email, got %+v", plain[2])
	}
	if plain[0].SessionID != "" || plain[0].Token != "" {
		t.Errorf("Expected no tracking fields without tracking")
	}

	tracked, err := ForAssignment(participants, a, Settings{Tracking: true, Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if tracked[0].SessionID != "sess" || tracked[0].LinkID != "l2" || tracked[0].Token != "tok" {
		t.Errorf("Expected tracking fields, got %+v", tracked[0])
	}

	if _, err := ForAssignment(participants[:2], a, Settings{}); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("Expected ErrUnknownParticipant, got %v", err)
	}
}

func TestExportCSV_CommaInName(t *testing.T) {
	out, err := ExportCSV([]Row{
		{Giver: "Smith, John", Email: "", Link: "http://x/pairing?from=Smith%2C+John&to=abc"},
		{Giver: `Ann "The Elf"`, Email: "ann@example.com", Link: "http://x/pairing?from=Ann"},
	})
	if err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("Export must be valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "Giver,Email,Link" {
		t.Errorf("Unexpected header %v", records[0])
	}
	if records[1][0] != "Smith, John" || len(records[1]) != 3 {
		t.Errorf("Expected comma to stay inside the giver column, got %v", records[1])
	}
	if records[2][0] != `Ann "The Elf"` {
		t.Errorf("Expected quotes preserved, got %v", records[2])
	}
}
