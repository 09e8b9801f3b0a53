package mmvdisk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const notOKListing = `recovery group  pdisk   declustered array  paths  capacity  free space  FRU (type)  state
--------------  ------  -----------  -----  --------  ----------  ----------  -----
rg1             pd1     DA1          2      3632 GiB  1536 GiB    00W1240     failing/noData
rg2             pd7     DA2          0      3632 GiB  1536 GiB    00W1240     dead/systemDrain/replace
`

// Listings from a live cluster wrap "declustered array" so that
// "declustered" lands on its own line above the main header.
const wrappedHeaderListing = `                        declustered
recovery group  pdisk   array        paths  capacity  free space  FRU (type)  state
--------------  ------  -----------  -----  --------  ----------  ----------  -----
rg1             pd1     DA1          2      3632 GiB  1536 GiB    00W1240     failing/noData
`

const replaceListing = `mmvdisk: A lower priority value means a higher need for replacement.

recovery group  pdisk   declustered array  priority
--------------  ------  -----------  --------
rg2             pd7     DA2          1.59
`

func pd7Stanza() string {
	return `pdisk:
   replacementPriority = 1.59
   name = "pd7"
   device = "/dev/sdq"
   recoveryGroup = "rg2"
   declusteredArray = "DA2"
   state = "dead/systemDrain/replace"
   location = "SX32901810-22"
   userLocation = "Rack BB1 U01-04, Enclosure 2 Drive 22"
   server = "gss-22.example.net"
   hardware = "HUS724030ALS640"
`
}

func TestParseListing(t *testing.T) {
	refs, err := parseListing("mmvdisk pdisk list --rg all --not-ok", notOKListing)
	if err != nil {
		t.Fatalf("parseListing error: %v", err)
	}
	want := []Ref{
		{RecoveryGroup: "rg1", Name: "pd1"},
		{RecoveryGroup: "rg2", Name: "pd7"},
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %v, want %v", i, refs[i], want[i])
		}
	}
}

func TestParseListingWrappedHeader(t *testing.T) {
	refs, err := parseListing("mmvdisk pdisk list --rg all --not-ok", wrappedHeaderListing)
	if err != nil {
		t.Fatalf("parseListing error: %v", err)
	}
	if len(refs) != 1 || refs[0] != (Ref{RecoveryGroup: "rg1", Name: "pd1"}) {
		t.Errorf("refs = %v, want [rg1/pd1]", refs)
	}
}

func TestParseListingStripsAdvisory(t *testing.T) {
	refs, err := parseListing("mmvdisk pdisk list --rg all --replace", replaceListing)
	if err != nil {
		t.Fatalf("parseListing error: %v", err)
	}
	if len(refs) != 1 || refs[0] != (Ref{RecoveryGroup: "rg2", Name: "pd7"}) {
		t.Errorf("refs = %v, want [rg2/pd7]", refs)
	}
}

func TestParseListingSentinels(t *testing.T) {
	for _, out := range []string{
		"mmvdisk: All pdisks are ok.\n",
		"mmvdisk: No pdisks are marked for replacement.\n",
	} {
		refs, err := parseListing("cmd", out)
		if err != nil {
			t.Errorf("sentinel output %q returned error: %v", out, err)
		}
		if len(refs) != 0 {
			t.Errorf("sentinel output %q returned refs: %v", out, refs)
		}
	}
}

func TestParseListingMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"garbage header", "something unexpected\nrg1  pd1\n"},
		{"empty output", ""},
		{"short row", "recovery group  pdisk\n--------------  -----\nonlyonefield\n"},
		{"duplicate pdisk", "recovery group  pdisk\n--------------  -----\nrg1  pd1\nrg1  pd1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := parseListing("cmd", tt.out)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("want ParseError, got %v", err)
			}
			if refs != nil {
				t.Errorf("malformed listing must not emit partial records, got %v", refs)
			}
		})
	}
}

func TestParseStanza(t *testing.T) {
	rec, err := parseStanza("cmd", pd7Stanza())
	if err != nil {
		t.Fatalf("parseStanza error: %v", err)
	}

	if rec.Name != "pd7" || rec.RecoveryGroup != "rg2" {
		t.Errorf("identity = %s/%s, want rg2/pd7", rec.RecoveryGroup, rec.Name)
	}
	if rec.State != StateFailed {
		t.Errorf("State = %q, want %q", rec.State, StateFailed)
	}
	if rec.RawState != "dead/systemDrain/replace" {
		t.Errorf("RawState = %q", rec.RawState)
	}
	if rec.Server != "gss-22.example.net" {
		t.Errorf("Server = %q", rec.Server)
	}
	if rec.UserLocation != "Rack BB1 U01-04, Enclosure 2 Drive 22" {
		t.Errorf("UserLocation = %q", rec.UserLocation)
	}
}

func TestParseStanzaMissingIdentity(t *testing.T) {
	_, err := parseStanza("cmd", "pdisk:\n   state = \"ok\"\n")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestMapState(t *testing.T) {
	tests := []struct {
		raw  string
		want DiskState
	}{
		{"ok", StateOK},
		{"failing", StateNotOK},
		{"failing/noData", StateNotOK},
		{"missing/systemDrain", StateNotOK},
		{"dead/systemDrain/replace", StateFailed},
		{"failing/replace", StateFailed},
		{"replacing", StateReplacing},
		{"slow", StateUnknown},
		{"", StateUnknown},
	}
	for _, tt := range tests {
		if got := mapState(tt.raw); got != tt.want {
			t.Errorf("mapState(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// fakeRunner maps exact command lines to canned results.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (Result, error) {
	cmdline := "mmvdisk " + strings.Join(args, " ")
	f.calls = append(f.calls, cmdline)
	if err, ok := f.errs[cmdline]; ok {
		return Result{Command: cmdline, ExitCode: 1}, err
	}
	out, ok := f.outputs[cmdline]
	if !ok {
		return Result{Command: cmdline, ExitCode: 1}, fmt.Errorf("unexpected command %q", cmdline)
	}
	return Result{Command: cmdline, Stdout: out}, nil
}

func TestClientInventory(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"mmvdisk pdisk list --rg all --not-ok":           notOKListing,
		"mmvdisk pdisk list --rg all --replace":          replaceListing,
		"mmvdisk pdisk list --rg rg2 --pdisk pd7 -L":     pd7Stanza(),
		"mmvdisk pdisk list --rg rg1 --pdisk pd1 -L":     "pdisk:\n   name = \"pd1\"\n   recoveryGroup = \"rg1\"\n   state = \"failing/noData\"\n",
	}}

	records, err := NewClient(runner).Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory error: %v", err)
	}

	// pd7 appears in both listings but must be detailed only once.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}
	if records[0].Name != "pd1" || records[0].State != StateNotOK {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Name != "pd7" || records[1].State != StateFailed {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestClientInventoryPropagatesToolError(t *testing.T) {
	toolErr := &ExternalToolError{Command: "mmvdisk pdisk list --rg all --not-ok", ExitCode: 1, Stderr: "mmvdisk: command failed"}
	runner := &fakeRunner{
		outputs: map[string]string{},
		errs: map[string]error{
			"mmvdisk pdisk list --rg all --not-ok": toolErr,
		},
	}

	_, err := NewClient(runner).Inventory(context.Background())
	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("want ExternalToolError, got %v", err)
	}
}

func TestClientInventoryEmpty(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"mmvdisk pdisk list --rg all --not-ok":  "mmvdisk: All pdisks are ok.\n",
		"mmvdisk pdisk list --rg all --replace": "mmvdisk: No pdisks are marked for replacement.\n",
	}}

	records, err := NewClient(runner).Inventory(context.Background())
	if err != nil {
		t.Fatalf("Inventory error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}
